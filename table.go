package dorisvec

// Table binds a table name to the client it was opened from.
// Immutable after creation.
type Table struct {
	name   string
	client *Client
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Client returns the owning client.
func (t *Table) Client() *Client {
	return t.client
}

// Search starts a new query ranking rows of this table by distance to vector.
// The vector is copied. It must be non-empty and finite; otherwise the
// returned Query carries ErrInvalidQuery. Dimensionality is checked by the
// backend at execution time.
func (t *Table) Search(vector []float32) Query {
	return newQuery(t, vector)
}
