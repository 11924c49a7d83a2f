//
// Copyright (c) SAS Institute Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package pkcs7

import (
	"encoding/asn1"
	"fmt"
	"reflect"
)

// Attribute is a CMS Attribute: an OID paired with a SET OF values of
// that attribute's type. Authenticode and RFC 3161 both only ever use
// a single value per attribute, but the wire format is always a set.
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue `asn1:"set"`
}

// AttributeList is an ordered list of Attributes, used for both the
// signed (authenticated) and unsigned attribute sets of a SignerInfo.
type AttributeList []Attribute

// ErrNoAttribute is returned by GetOne and GetAll when no attribute
// with the requested OID is present.
type ErrNoAttribute struct {
	OID asn1.ObjectIdentifier
}

func (e ErrNoAttribute) Error() string {
	return fmt.Sprintf("pkcs7: attribute %s not present", e.OID)
}

// Exists reports whether an attribute with the given OID is present.
func (l AttributeList) Exists(oid asn1.ObjectIdentifier) bool {
	for _, attr := range l {
		if attr.Type.Equal(oid) {
			return true
		}
	}
	return false
}

// Add appends a new attribute with a single value to the list. Adding
// the same OID more than once produces multiple attributes, each with
// one value, rather than growing an existing attribute's value set.
func (l *AttributeList) Add(oid asn1.ObjectIdentifier, value interface{}) error {
	der, err := asn1.Marshal(value)
	if err != nil {
		return fmt.Errorf("pkcs7: marshaling attribute %s: %w", oid, err)
	}
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return fmt.Errorf("pkcs7: marshaling attribute %s: %w", oid, err)
	}
	*l = append(*l, Attribute{Type: oid, Values: []asn1.RawValue{raw}})
	return nil
}

// GetOne unmarshals the single value of the attribute matching oid
// into out. It is an error if more than one value is present across
// all attributes with that OID.
func (l AttributeList) GetOne(oid asn1.ObjectIdentifier, out interface{}) error {
	var matched []asn1.RawValue
	for _, attr := range l {
		if attr.Type.Equal(oid) {
			matched = append(matched, attr.Values...)
		}
	}
	switch len(matched) {
	case 0:
		return ErrNoAttribute{OID: oid}
	case 1:
		_, err := asn1.Unmarshal(matched[0].FullBytes, out)
		return err
	default:
		return fmt.Errorf("pkcs7: attribute %s has more than one value", oid)
	}
}

// GetAll unmarshals every value of the attribute matching oid into
// out, which must be a pointer to a slice. It returns ErrNoAttribute
// if the OID is not present.
func (l AttributeList) GetAll(oid asn1.ObjectIdentifier, out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("pkcs7: GetAll needs a pointer to a slice, got %T", out)
	}
	slice := rv.Elem()
	found := false
	for _, attr := range l {
		if !attr.Type.Equal(oid) {
			continue
		}
		found = true
		for _, raw := range attr.Values {
			elem := reflect.New(slice.Type().Elem())
			if _, err := asn1.Unmarshal(raw.FullBytes, elem.Interface()); err != nil {
				return err
			}
			slice.Set(reflect.Append(slice, elem.Elem()))
		}
	}
	if !found {
		return ErrNoAttribute{OID: oid}
	}
	return nil
}

// marshalUnsortedSet DER-encodes l as a SET OF Attribute. Despite the
// name, encoding/asn1 sorts the elements of a SET OF by their DER
// encoding, so the encoded order need not match the order Add put the
// attributes in.
func marshalUnsortedSet(l AttributeList) ([]byte, error) {
	return asn1.MarshalWithParams(l, "set")
}
