// Package cursor implements the opaque pagination token for note listing.
//
// A cursor encodes the (updated_at, id) sort key of the last item of a
// page. The wire form is base64("updatedAt:id"). Callers must treat the
// token as opaque; the only contract is round-trip stability.
package cursor

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofrs/uuid/v5"
)

// Cursor is the decoded resume point for a paginated note listing.
type Cursor struct {
	UpdatedAt int64
	ID        uuid.UUID
}

// Encode serializes the cursor into its transport-safe token form.
func Encode(c Cursor) string {
	raw := fmt.Sprintf("%d:%s", c.UpdatedAt, c.ID)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token produced by Encode. A malformed or tampered
// token yields (nil, false), never an error: stale cursors degrade to
// "start of collection".
func Decode(token string) (*Cursor, bool) {
	if token == "" {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, false
	}
	updated, id, found := strings.Cut(string(raw), ":")
	if !found {
		return nil, false
	}
	ts, err := strconv.ParseInt(updated, 10, 64)
	if err != nil {
		return nil, false
	}
	uid, err := uuid.FromString(id)
	if err != nil {
		return nil, false
	}
	return &Cursor{UpdatedAt: ts, ID: uid}, true
}
