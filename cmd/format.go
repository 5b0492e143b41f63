package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"tomes/pkg/openlibrary"
	"tomes/pkg/shelf"
)

// Define styles using lipgloss
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 1, 0)

	bookStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1).
			Margin(0, 0, 1, 2)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	} else {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
}

// formatTime formats a time relative to now or as an absolute date
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	// If it's within the last day, show relative time
	if diff < 24*time.Hour {
		if diff < time.Hour {
			minutes := int(diff.Minutes())
			if minutes < 1 {
				return "just now"
			}
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		hours := int(diff.Hours())
		return fmt.Sprintf("%d hours ago", hours)
	}

	// If it's within the last week, show days ago
	if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%d days ago", days)
	}

	// Otherwise show the date
	if t.Year() == now.Year() {
		return t.Format("Jan 2, 15:04")
	}
	return t.Format("Jan 2, 2006")
}

// formatDoc formats a single search result for display
func formatDoc(doc openlibrary.Doc, index int) string {
	var content strings.Builder

	header := fmt.Sprintf("#%d", index)
	content.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")).Render(header))
	content.WriteString("\n\n")

	content.WriteString(openlibrary.FormatBook(doc))

	var extras []string
	if doc.FirstPublishYear > 0 {
		extras = append(extras, fmt.Sprintf("First published: %d", doc.FirstPublishYear))
	}
	if doc.EditionCount > 0 {
		extras = append(extras, fmt.Sprintf("Editions: %s", formatNumber(doc.EditionCount)))
	}
	if len(doc.Language) > 0 {
		extras = append(extras, fmt.Sprintf("Languages: %s", strings.Join(doc.Language, ", ")))
	}
	if len(extras) > 0 {
		content.WriteString("\n")
		content.WriteString(strings.Join(extras, "\n"))
	}

	if doc.Key != "" {
		content.WriteString("\n\n")
		content.WriteString(metaStyle.Render(fmt.Sprintf("Key: %s", doc.Key)))
	}

	return bookStyle.Render(content.String())
}

// formatShelfBook formats a single saved book for display
func formatShelfBook(book shelf.Book, index int) string {
	var content strings.Builder

	header := fmt.Sprintf("#%d - %s", index, formatTime(book.AddedAt))
	content.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")).Render(header))
	content.WriteString("\n\n")

	content.WriteString(openlibrary.FormatBookMetadata(book.Metadata))

	content.WriteString("\n\n")
	content.WriteString(metaStyle.Render(fmt.Sprintf("ID: %s | Added: %s", book.ID, book.AddedAt.Format("2006-01-02 15:04"))))

	return bookStyle.Render(content.String())
}

// isTerminal checks if stdout is a terminal
func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// displayWithPager displays content using a pager
func displayWithPager(content string) error {
	// Try to find a suitable pager
	pagerCmd := os.Getenv("PAGER")
	if pagerCmd == "" {
		// Try common pagers in order of preference
		pagers := []string{"less", "more", "cat"}
		for _, pager := range pagers {
			if _, err := exec.LookPath(pager); err == nil {
				pagerCmd = pager
				break
			}
		}
	}

	if pagerCmd == "" {
		// No pager found, output directly
		fmt.Print(content)
		return nil
	}

	// Set up less with good defaults if it's available
	args := []string{}
	if strings.Contains(pagerCmd, "less") {
		args = []string{"-R", "-S", "-F", "-X"}
	}

	cmd := exec.Command(pagerCmd, args...)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
