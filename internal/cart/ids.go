package cart

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDGenerator allocates cart and line identifiers.
type IDGenerator interface {
	NewCartID(now time.Time) string
	NewItemID(productID string, now time.Time) string
}

// RandomIDs builds ids from the clock and a random uuid suffix.
type RandomIDs struct{}

func (RandomIDs) NewCartID(now time.Time) string {
	return fmt.Sprintf("cart_%d_%s", now.UnixMilli(), randomSuffix())
}

func (RandomIDs) NewItemID(productID string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", productID, now.UnixMilli(), randomSuffix())
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
