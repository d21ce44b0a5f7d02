package menu

import (
	"fmt"
	"time"

	"cantinabot/internal/transport"
)

// PageFiles wraps rendered pages as named attachments for delivery.
func PageFiles(c *Cantina, day time.Time, pages [][]byte) []transport.File {
	files := make([]transport.File, 0, len(pages))
	for i, p := range pages {
		files = append(files, transport.File{
			Name: fmt.Sprintf("%s-menu-%s-page-%d.png", c.Key, day.Format("2006-01-02"), i+1),
			Data: p,
		})
	}
	return files
}
