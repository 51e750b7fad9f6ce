package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FormField is one name/value pair of a negotiated upload form.
type FormField struct {
	Name  string
	Value string
}

// FormFields carries the negotiated form fields in the exact order the
// backend issued them. Storage endpoints check the signed policy against
// the multipart body, so reordering fields breaks the upload; a plain
// map would lose the order on decode.
type FormFields []FormField

// Get returns the value of the named field.
func (f FormFields) Get(name string) (string, bool) {
	for _, fld := range f {
		if fld.Name == name {
			return fld.Value, true
		}
	}
	return "", false
}

// MarshalJSON emits a JSON object with the fields in slice order.
func (f FormFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fld := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(fld.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(fld.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON walks the object token by token so the received key
// order survives.
func (f *FormFields) UnmarshalJSON(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("upload fields: expected a JSON object, got %v", tok)
	}
	out := FormFields{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("upload fields: unexpected key token %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("upload fields: field %q: %w", key, err)
		}
		out = append(out, FormField{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}
