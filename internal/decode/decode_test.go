package decode

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/samvad-hq/samvad-list-loader/internal/domain"
)

func mustDecodeError(t *testing.T, err error) *domain.LoadError {
	t.Helper()
	var le *domain.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *domain.LoadError, got %T (%v)", err, err)
	}
	if le.Kind != domain.KindDecode {
		t.Fatalf("expected decode kind, got %s", le.Kind)
	}
	return le
}

func TestUsersMapsEveryElement(t *testing.T) {
	raw := json.RawMessage(`[
		{"id": 1, "name": "Leanne Graham", "email": "sincere@april.biz",
		 "address": {"street": "Kulas Light", "city": "Gwenborough"}},
		{"id": "u-2", "name": "Ervin Howell", "email": "shanna@melissa.tv"}
	]`)

	got, err := Users(raw)
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	want := []domain.Record{
		{ID: "1", Label: "Leanne Graham", Contact: "sincere@april.biz",
			Location: domain.Location{Street: "Kulas Light", City: "Gwenborough"}, Shape: domain.ShapeUsers},
		{ID: "u-2", Label: "Ervin Howell", Contact: "shanna@melissa.tv", Shape: domain.ShapeUsers},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Users = %#v\nwant %#v", got, want)
	}
}

func TestUsersMissingEmailDefaultsToEmpty(t *testing.T) {
	got, err := Users(json.RawMessage(`[{"id": 7, "name": "Kurtis", "address": null}]`))
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(got) != 1 || got[0].Contact != "" || got[0].Location != (domain.Location{}) {
		t.Fatalf("unexpected record %#v", got)
	}
}

func TestUsersIsAtomicOnMalformedElement(t *testing.T) {
	cases := map[string]string{
		"id wrong type":      `[{"id": 1, "name": "a"}, {"id": {"x": 1}, "name": "b"}]`,
		"id missing":         `[{"id": 1}, {"name": "b"}]`,
		"name wrong type":    `[{"id": 1, "name": 5}]`,
		"address not object": `[{"id": 1, "address": "Pune"}]`,
		"city wrong type":    `[{"id": 1, "address": {"city": true}}]`,
		"element not object": `[{"id": 1}, 42]`,
		"not an array":       `{"id": 1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Users(json.RawMessage(body))
			if got != nil {
				t.Fatalf("expected zero records, got %#v", got)
			}
			mustDecodeError(t, err)
		})
	}
}

func TestUsersReportsElementIndex(t *testing.T) {
	_, err := Users(json.RawMessage(`[{"id": 1}, {"id": 2}, {"id": false}]`))
	var ee *ElementError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ElementError, got %v", err)
	}
	if ee.Index != 2 {
		t.Fatalf("index = %d", ee.Index)
	}
}

func TestEnvelopeSuccess(t *testing.T) {
	raw := json.RawMessage(`{"status":"success","data":[{"label":"Alice","value":10},{"label":"Bob","value":20}]}`)

	got, err := Envelope(raw)
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	want := []domain.Record{
		{ID: "10", Label: "Alice", Shape: domain.ShapeEnvelope},
		{ID: "20", Label: "Bob", Shape: domain.ShapeEnvelope},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Envelope = %#v\nwant %#v", got, want)
	}
}

func TestEnvelopeNonSuccessStatusFails(t *testing.T) {
	for _, status := range []string{"error", "SUCCESS", ""} {
		raw := json.RawMessage(`{"status":"` + status + `","data":[{"label":"Alice","value":10}]}`)
		got, err := Envelope(raw)
		if got != nil {
			t.Fatalf("status %q: expected zero records, got %#v", status, got)
		}
		le := mustDecodeError(t, err)
		if !strings.Contains(le.Message, "non-success status") {
			t.Fatalf("status %q: message = %q", status, le.Message)
		}
	}
}

func TestEnvelopeStructuralFailures(t *testing.T) {
	cases := map[string]string{
		"missing status":    `{"data":[]}`,
		"status not string": `{"status":1,"data":[]}`,
		"missing data":      `{"status":"success"}`,
		"data not array":    `{"status":"success","data":{}}`,
		"value missing":     `{"status":"success","data":[{"label":"A"}]}`,
		"value bool":        `{"status":"success","data":[{"label":"A","value":true}]}`,
		"label number":      `{"status":"success","data":[{"label":3,"value":1}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Envelope(json.RawMessage(body))
			if got != nil {
				t.Fatalf("expected zero records, got %#v", got)
			}
			mustDecodeError(t, err)
		})
	}
}

func TestEnvelopeEmptyDataIsEmptySuccess(t *testing.T) {
	got, err := Envelope(json.RawMessage(`{"status":"success","data":[]}`))
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestIdentifierKeepsNumberLiteral(t *testing.T) {
	got, err := Envelope(json.RawMessage(`{"status":"success","data":[{"label":"Big","value":9007199254740993},{"label":"Frac","value":10.5}]}`))
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if got[0].ID != "9007199254740993" || got[1].ID != "10.5" {
		t.Fatalf("unexpected ids %q %q", got[0].ID, got[1].ID)
	}
}

func TestAutoDispatchesByTopLevel(t *testing.T) {
	users, err := Auto(json.RawMessage(` [{"id":1,"name":"a"}]`))
	if err != nil || len(users) != 1 || users[0].Shape != domain.ShapeUsers {
		t.Fatalf("Auto users = %#v, %v", users, err)
	}
	entries, err := Auto(json.RawMessage(`{"status":"success","data":[{"label":"a","value":1}]}`))
	if err != nil || len(entries) != 1 || entries[0].Shape != domain.ShapeEnvelope {
		t.Fatalf("Auto envelope = %#v, %v", entries, err)
	}
	if _, err := Auto(json.RawMessage(`"x"`)); err == nil {
		t.Fatalf("expected error for scalar payload")
	}
}

func TestRegistryResolvesShapes(t *testing.T) {
	reg := DefaultRegistry()
	for _, shape := range []string{"users", " Envelope ", "", "AUTO"} {
		if _, err := reg.For(shape); err != nil {
			t.Fatalf("For(%q): %v", shape, err)
		}
	}
	if _, err := reg.For("xml"); err == nil {
		t.Fatalf("expected error for unknown shape")
	}
}

func TestRegistryShapeNamesMatchRecordShapes(t *testing.T) {
	reg := DefaultRegistry()
	cases := map[domain.Shape]string{
		domain.ShapeUsers:    `[{"id": 1, "name": "Leanne"}]`,
		domain.ShapeEnvelope: `{"status": "success", "data": [{"label": "Alice", "value": 10}]}`,
	}
	for shape, payload := range cases {
		fn, err := reg.For(string(shape))
		if err != nil {
			t.Fatalf("For(%q): %v", shape, err)
		}
		records, err := fn(json.RawMessage(payload))
		if err != nil || len(records) != 1 || records[0].Shape != shape {
			t.Fatalf("shape %q decoded %#v, %v", shape, records, err)
		}
	}
}
