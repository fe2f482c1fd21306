package validation

import "testing"

func TestListOrdersQuery(t *testing.T) {
	v := New()

	cases := []struct {
		name    string
		q       ListOrdersQuery
		wantErr bool
	}{
		{"empty is valid", ListOrdersQuery{}, false},
		{"valid range", ListOrdersQuery{Start: "2024-01-01", End: "2024-01-31"}, false},
		{"single day", ListOrdersQuery{Start: "2024-01-01", End: "2024-01-01"}, false},
		{"start only", ListOrdersQuery{Start: "2024-01-01"}, false},
		{"reversed range", ListOrdersQuery{Start: "2024-02-01", End: "2024-01-01"}, true},
		{"bad format", ListOrdersQuery{Start: "01/02/2024"}, true},
		{"oversized search", ListOrdersQuery{Search: string(make([]byte, 65))}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(tc.q)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Struct(%+v) err = %v, wantErr %v", tc.q, err, tc.wantErr)
			}
		})
	}
}

func TestWebhookEvent(t *testing.T) {
	v := New()
	if err := v.Struct(WebhookEvent{Object: "whatsapp_business_account"}); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
	if err := v.Struct(WebhookEvent{}); err == nil {
		t.Fatalf("event without object accepted")
	}
}
