// Package render draws the upload and job screens as plain terminal text.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/kiranshivaraju/pdftranslate/internal/jobview"
	"github.com/kiranshivaraju/pdftranslate/internal/upload"
	"github.com/kiranshivaraju/pdftranslate/pkg/models"
)

const (
	Title    = "PDF Translate Local"
	Subtitle = "Scan PDF to OCR to Translation to Markdown"

	NoFileSelected = "No file selected"
	ResultPending  = "Result will appear after job completion."

	barWidth = 30
)

var (
	pillColors = map[string]*color.Color{
		jobview.ClassPending: color.New(color.FgYellow, color.Bold),
		jobview.ClassOK:      color.New(color.FgGreen, color.Bold),
		jobview.ClassFailed:  color.New(color.FgRed, color.Bold),
	}
	errorColor = color.New(color.FgRed)
	mutedColor = color.New(color.Faint)
	headColor  = color.New(color.Bold)
)

// Header writes the application banner.
func Header(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n\n", headColor.Sprint(Title), mutedColor.Sprint(Subtitle))
	return err
}

// Upload writes the upload screen.
func Upload(w io.Writer, s upload.State) error {
	var b strings.Builder

	b.WriteString(headColor.Sprint("Upload PDF") + "\n")
	name := NoFileSelected
	if s.Selected != nil {
		name = s.Selected.Name
		if s.Selected.Pages > 0 {
			name += fmt.Sprintf(" (%d pages)", s.Selected.Pages)
		}
	}
	b.WriteString("File: " + name + "\n")
	if s.Loading {
		b.WriteString("Creating...\n")
	}
	if s.Notice != "" {
		b.WriteString(mutedColor.Sprint(s.Notice) + "\n")
	}
	if s.Error != "" {
		b.WriteString(errorColor.Sprint(s.Error) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Job writes the job screen. downloadURL is the link to the raw Markdown result.
func Job(w io.Writer, s jobview.State, downloadURL string) error {
	var b strings.Builder

	b.WriteString(headColor.Sprintf("Job %s", s.JobID) + "\n")
	b.WriteString(Pill(s) + "\n")

	stage := s.Stage()
	if s.Job == nil {
		stage = "..."
	}
	b.WriteString(mutedColor.Sprint("Stage: "+stage) + "\n")
	b.WriteString(Progress("Progress", s.Percent()) + "\n")

	if msg := s.JobError(); msg != "" {
		b.WriteString(errorColor.Sprint(msg) + "\n")
	}
	if s.Error != "" {
		b.WriteString(errorColor.Sprint(s.Error) + "\n")
	}

	b.WriteString("\n" + headColor.Sprint("Result Markdown") + "\n")
	b.WriteString("Download: " + downloadURL + "\n")
	if s.Job != nil && s.Job.Status == models.JobStatusSucceeded {
		b.WriteString("\n" + s.Markdown)
		if !strings.HasSuffix(s.Markdown, "\n") {
			b.WriteString("\n")
		}
	} else {
		b.WriteString(mutedColor.Sprint(ResultPending) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Pill is the coloured status line.
func Pill(s jobview.State) string {
	c, ok := pillColors[s.StatusClass()]
	if !ok {
		c = pillColors[jobview.ClassPending]
	}
	return c.Sprintf("Status: %s", s.StatusLabel())
}

// Progress draws a fixed-width bar followed by the percentage.
func Progress(label string, percent int) string {
	percent = max(0, min(100, percent))
	filled := percent * barWidth / 100
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
	return fmt.Sprintf("%s [%s] %d%%", label, bar, percent)
}

// StatusLine is the one-line summary printed while a job is followed.
func StatusLine(s jobview.State) string {
	stage := s.Stage()
	if stage == "" {
		stage = "..."
	}
	return fmt.Sprintf("%s  %s  %s", Pill(s), Progress("Progress", s.Percent()), mutedColor.Sprint("Stage: "+stage))
}
