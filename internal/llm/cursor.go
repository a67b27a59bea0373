package llm

import "fmt"

// Pair is one (key, model) candidate produced by a Cursor.
type Pair struct {
	Key        string
	Model      string
	KeyIndex   int
	ModelIndex int
}

// String renders the pair with the key masked.
func (p Pair) String() string {
	return fmt.Sprintf("(%s, %s)", MaskKey(p.Key), p.Model)
}

// Cursor produces (key, model) pairs for the retry loop.
//
// Within a cycle every model is tried, in priority order, for the current key
// before the cursor advances to the next key. Each pair is produced at most
// once per cycle. Pairs passed to Exclude are skipped in every later cycle.
type Cursor struct {
	keys     []string
	models   []string
	pos      int
	cycle    int
	tried    map[Pair]struct{}
	excluded map[Pair]struct{}
}

// NewCursor builds a cursor over deduplicated keys and models. An empty key
// list yields a single implicit key so that keyless backends iterate over the
// model list alone.
func NewCursor(keys, models []string) (*Cursor, error) {
	models = DedupeKeys(models)
	if len(models) == 0 {
		return nil, ErrNoModels
	}

	keys = DedupeKeys(keys)
	if len(keys) == 0 {
		keys = []string{""}
	}

	return &Cursor{
		keys:     keys,
		models:   models,
		cycle:    1,
		tried:    make(map[Pair]struct{}, len(keys)*len(models)),
		excluded: make(map[Pair]struct{}),
	}, nil
}

// Keys returns the deduplicated key list, including the implicit key.
func (c *Cursor) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Models returns the deduplicated model list in priority order.
func (c *Cursor) Models() []string {
	return append([]string(nil), c.models...)
}

// Size is the number of pairs in a full cycle, |K'|×|M|.
func (c *Cursor) Size() int {
	return len(c.keys) * len(c.models)
}

// Cycle returns the 1-based number of the current cycle.
func (c *Cursor) Cycle() int {
	return c.cycle
}

// Next returns the next untried, non-excluded pair of the current cycle.
// It returns false once the cycle is exhausted.
func (c *Cursor) Next() (Pair, bool) {
	for c.pos < c.Size() {
		p := c.pairAt(c.pos)
		c.pos++
		if _, ok := c.excluded[p]; ok {
			continue
		}
		if _, ok := c.tried[p]; ok {
			continue
		}
		c.tried[p] = struct{}{}
		return p, true
	}
	return Pair{}, false
}

// Exclude removes the pair from this and every following cycle.
func (c *Cursor) Exclude(p Pair) {
	c.excluded[p] = struct{}{}
}

// Excluded reports whether the pair was permanently excluded.
func (c *Cursor) Excluded(p Pair) bool {
	_, ok := c.excluded[p]
	return ok
}

// Remaining counts the pairs still available in the current cycle.
func (c *Cursor) Remaining() int {
	n := 0
	for i := c.pos; i < c.Size(); i++ {
		p := c.pairAt(i)
		if _, ok := c.excluded[p]; ok {
			continue
		}
		if _, ok := c.tried[p]; ok {
			continue
		}
		n++
	}
	return n
}

// Live counts the pairs that have not been permanently excluded.
func (c *Cursor) Live() int {
	return c.Size() - len(c.excluded)
}

// NewCycle clears the per-cycle tried set and rewinds to the first pair.
// Permanent exclusions are kept.
func (c *Cursor) NewCycle() {
	c.pos = 0
	c.cycle++
	clear(c.tried)
}

func (c *Cursor) pairAt(i int) Pair {
	ki, mi := i/len(c.models), i%len(c.models)
	return Pair{
		Key:        c.keys[ki],
		Model:      c.models[mi],
		KeyIndex:   ki,
		ModelIndex: mi,
	}
}
