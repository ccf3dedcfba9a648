package backend

import (
	"context"
	"log"

	"github.com/zhouzirui/goalprobe/internal/model/consultation"
)

// CleanupActiveConsultations deletes every active consultation of the account.
// It never fails: a listing error is logged and treated as nothing to clean,
// per-item failures are logged and skipped. It returns how many were deleted.
func (c *Client) CleanupActiveConsultations(ctx context.Context, token string, logger *log.Logger) int {
	logger.Println("Cleaning up all active consultations...")

	items, err := c.ListConsultations(ctx, token, consultation.StatusActive)
	if err != nil {
		logger.Printf("⚠️  Failed to fetch consultations: %v", err)
		return 0
	}

	deleted := 0
	for _, item := range items {
		if err := c.DeleteConsultation(ctx, token, item.ID); err != nil {
			logger.Printf("   ⚠️  Failed to delete consultation %s: %v", item.ID, err)
			continue
		}
		deleted++
		logger.Printf("   ✅ Deleted consultation %s", item.ID)
	}

	logger.Printf("✅ Cleanup complete (%d of %d consultations deleted)", deleted, len(items))
	return deleted
}
