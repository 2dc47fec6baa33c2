package ledger

import "github.com/elliotchance/orderedmap/v2"

// StatusCounts is an insertion-ordered status -> count map. Ordering is
// deterministic (by first-seen status during the GROUP BY scan) so reports
// built on top render the same way on every run.
type StatusCounts = orderedmap.OrderedMap[Status, int]

// ErrorCounts is an insertion-ordered error code -> count map.
type ErrorCounts = orderedmap.OrderedMap[ErrorCode, int]

// ExtraInfoStatusCounts maps source_extra_info -> StatusCounts, both levels
// insertion-ordered.
type ExtraInfoStatusCounts = orderedmap.OrderedMap[string, *StatusCounts]

func newStatusCounts() *StatusCounts {
	return orderedmap.NewOrderedMap[Status, int]()
}

func newErrorCounts() *ErrorCounts {
	return orderedmap.NewOrderedMap[ErrorCode, int]()
}

func newExtraInfoStatusCounts() *ExtraInfoStatusCounts {
	return orderedmap.NewOrderedMap[string, *StatusCounts]()
}

// HasErrors reports whether counts contains any item actually carrying an
// error code, ignoring the ErrNone "no error" group that CountsByErrorCode
// and its variants include whenever some item has no error code.
func HasErrors(counts *ErrorCounts) bool {
	if counts == nil {
		return false
	}
	for el := counts.Front(); el != nil; el = el.Next() {
		if el.Key != ErrNone && el.Value > 0 {
			return true
		}
	}
	return false
}
