package procdriver

import "context"

// Page fetches one page of T starting at offset, sized size. It returns a
// page shorter than size (including empty) only when no further pages
// remain.
type Page[T any] func(ctx context.Context, offset, size int) ([]T, error)

// CollectAll walks fetch page by page, offset += size, until a page shorter
// than size (including an empty one) is returned. The original driver this is grounded on recurses per page;
// recursion is replaced here with a plain loop so arbitrarily large batches
// cannot grow the call stack.
func CollectAll[T any](ctx context.Context, size int, fetch Page[T]) ([]T, error) {
	var all []T
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, offset, size)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
		offset += size
		if len(page) < size {
			return all, nil
		}
	}
}
