package entities

// Record is the minimal view of a tenant-owned object the engine needs: an
// identifier plus a flat bag of scalar attributes. The owning user, when set,
// lives in Fields under the caller's ownership field (usually "owner").
type Record struct {
	ID         string                 `json:"id"`
	ObjectType ObjectType             `json:"object_type"`
	Fields     map[string]interface{} `json:"fields"`
}

// GetField returns the named attribute and whether it is present. The record
// ID is addressable as the field "id" so filter expressions can target it.
func (r *Record) GetField(name string) (interface{}, bool) {
	if name == "id" {
		return r.ID, true
	}
	v, ok := r.Fields[name]
	return v, ok
}
