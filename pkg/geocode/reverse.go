package geocode

import (
	"context"
	"strings"

	"github.com/sells-group/yardfinder/internal/model"
)

// Resolve turns a free-text place ("Trenton", "Exit 9 NJ Turnpike") into a
// coordinate. It shares the client's gate with Geocode. Blank text is a
// NotFoundError without an upstream call.
func (c *Client) Resolve(ctx context.Context, place string) (model.Coordinate, error) {
	place = strings.Join(strings.Fields(place), " ")
	if place == "" {
		return model.Coordinate{}, &NotFoundError{Query: place}
	}
	return c.search(ctx, place)
}
