package decode

import (
	"encoding/json"
	"fmt"

	"github.com/samvad-hq/samvad-list-loader/internal/domain"
)

// Func turns a raw payload into records. Any error it returns is a
// *domain.LoadError of kind decode, and the record slice is then nil.
type Func func(raw json.RawMessage) ([]domain.Record, error)

const envelopeSuccess = "success"

// ElementError reports which element of a batch could not be decoded.
type ElementError struct {
	Index int
	Err   error
}

func (e *ElementError) Error() string { return fmt.Sprintf("element %d: %v", e.Index, e.Err) }
func (e *ElementError) Unwrap() error { return e.Err }

// Users decodes the flat user-profile shape:
// [{id, name, email, address:{street, city}}, ...].
func Users(raw json.RawMessage) ([]domain.Record, error) {
	items, err := parseArray(raw)
	if err != nil {
		return nil, decodeFailure(err, "users payload")
	}
	return decodeAll(items, UserRecord, "users payload")
}

// UserRecord decodes one user profile.
func UserRecord(raw json.RawMessage) (domain.Record, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return domain.Record{}, err
	}
	id, err := obj.identifier("id")
	if err != nil {
		return domain.Record{}, err
	}
	name, err := obj.optionalString("name")
	if err != nil {
		return domain.Record{}, err
	}
	email, err := obj.optionalString("email")
	if err != nil {
		return domain.Record{}, err
	}
	loc, err := location(obj)
	if err != nil {
		return domain.Record{}, err
	}
	return domain.Record{
		ID:       id,
		Label:    name,
		Contact:  email,
		Location: loc,
		Shape:    domain.ShapeUsers,
	}, nil
}

func location(obj object) (domain.Location, error) {
	addr, err := obj.optionalObject("address")
	if err != nil || addr == nil {
		return domain.Location{}, err
	}
	street, err := addr.optionalString("street")
	if err != nil {
		return domain.Location{}, fmt.Errorf("address: %w", err)
	}
	city, err := addr.optionalString("city")
	if err != nil {
		return domain.Location{}, fmt.Errorf("address: %w", err)
	}
	return domain.Location{Street: street, City: city}, nil
}

// Envelope decodes {status, data:[{label, value}, ...]}. A status other than
// "success" fails the whole payload.
func Envelope(raw json.RawMessage) ([]domain.Record, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return nil, decodeFailure(err, "envelope payload")
	}
	status, err := obj.requiredString("status")
	if err != nil {
		return nil, decodeFailure(err, "envelope payload")
	}
	if status != envelopeSuccess {
		return nil, domain.NewLoadError(domain.KindDecode, nil, "non-success status %q", status)
	}
	data, ok := obj["data"]
	if !ok || isNull(data) {
		return nil, decodeFailure(fmt.Errorf("field %q is required", "data"), "envelope payload")
	}
	items, err := parseArray(data)
	if err != nil {
		return nil, decodeFailure(fmt.Errorf("field %q: %w", "data", err), "envelope payload")
	}
	return decodeAll(items, EntryRecord, "envelope payload")
}

// EntryRecord decodes one {label, value} envelope entry.
func EntryRecord(raw json.RawMessage) (domain.Record, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return domain.Record{}, err
	}
	value, err := obj.identifier("value")
	if err != nil {
		return domain.Record{}, err
	}
	label, err := obj.optionalString("label")
	if err != nil {
		return domain.Record{}, err
	}
	return domain.Record{ID: value, Label: label, Shape: domain.ShapeEnvelope}, nil
}

// Auto picks Users for a top-level array and Envelope for an object.
func Auto(raw json.RawMessage) ([]domain.Record, error) {
	switch first(raw) {
	case '[':
		return Users(raw)
	case '{':
		return Envelope(raw)
	default:
		return nil, decodeFailure(fmt.Errorf("expected array or object, got %s", kindOf(raw)), "payload")
	}
}

// decodeAll is all-or-nothing: the first bad element fails the batch.
func decodeAll(items []json.RawMessage, one func(json.RawMessage) (domain.Record, error), what string) ([]domain.Record, error) {
	records := make([]domain.Record, 0, len(items))
	for i, item := range items {
		rec, err := one(item)
		if err != nil {
			return nil, decodeFailure(&ElementError{Index: i, Err: err}, what)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeFailure(cause error, what string) *domain.LoadError {
	return domain.NewLoadError(domain.KindDecode, cause, "decode %s", what)
}
