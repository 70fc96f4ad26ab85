package cache

import "fmt"

// ResultKey addresses the Markdown result of a finished job. Results never change
// once a job succeeds.
func ResultKey(jobID string) string {
	return fmt.Sprintf("result:%s", jobID)
}

func UploadRateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:upload:%s", client)
}
