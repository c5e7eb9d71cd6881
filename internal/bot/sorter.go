package bot

import (
	"context"
	"slices"

	"github.com/reinodovo/boto-heapsort/internal/heapsort"
)

// sortItems orders items best first according to the chat's votes.
func sortItems(ctx context.Context, items []string, c *Comparator, chatId int64) ([]string, error) {
	sorted := slices.Clone(items)
	err := heapsort.SortCompare(sorted, func(a, b string) (int, error) {
		return c.Compare(ctx, a, b, chatId)
	})
	if err != nil {
		return nil, err
	}
	return sorted, nil
}
