package remote

import (
	"context"
)

// Object is one record held by a remote backend.
type Object struct {
	Type   string
	ID     string
	Fields map[string]interface{}

	// Modstamp and LastModified are milliseconds since epoch.
	Modstamp     int64
	LastModified int64
}

func (o *Object) value(field string) interface{} {
	switch field {
	case FieldID:
		return o.ID
	case FieldSystemModstamp:
		return o.Modstamp
	case FieldLastModifiedDate:
		return o.LastModified
	default:
		return o.Fields[field]
	}
}

// Record renders the object as a wire record. An empty field list selects every field.
func (o *Object) Record(fields []string) map[string]interface{} {
	record := map[string]interface{}{
		FieldID:         o.ID,
		FieldAttributes: map[string]interface{}{FieldType: o.Type},
	}

	if len(fields) == 0 {
		for k, v := range o.Fields {
			record[k] = v
		}
		record[FieldLastModifiedDate] = FormatTimestamp(o.LastModified)
		record[FieldSystemModstamp] = FormatTimestamp(o.Modstamp)
		return record
	}

	for _, f := range fields {
		switch f {
		case FieldID:
		case FieldSystemModstamp, FieldLastModifiedDate:
			record[f] = FormatTimestamp(o.value(f).(int64))
		default:
			record[f] = o.Fields[f]
		}
	}
	return record
}

func (o *Object) clone() *Object {
	c := *o
	c.Fields = make(map[string]interface{}, len(o.Fields))
	for k, v := range o.Fields {
		c.Fields[k] = v
	}
	return &c
}

// Backend is the storage behind a remote Service.
type Backend interface {
	// Scan returns every object of a type, or of all types when objectType is empty.
	Scan(ctx context.Context, objectType string) ([]*Object, error)

	// Get returns one object, or nil when it does not exist.
	Get(ctx context.Context, objectType, id string) (*Object, error)

	// Put writes an object. With mustNotExist set, an existing object is an error.
	Put(ctx context.Context, obj *Object, mustNotExist bool) error

	// Remove deletes an object and reports whether it existed.
	Remove(ctx context.Context, objectType, id string) (bool, error)

	// Close releases backend resources.
	Close() error
}
