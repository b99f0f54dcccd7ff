package database

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	violation := &pq.Error{Code: "23505", Constraint: "orders_order_number_key"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"matching constraint", violation, "orders_order_number_key", true},
		{"wrapped", fmt.Errorf("insert order: %w", violation), "orders_order_number_key", true},
		{"any constraint", violation, "", true},
		{"other constraint", violation, "users_email_key", false},
		{"other code", &pq.Error{Code: "23503"}, "", false},
		{"plain error", errors.New("boom"), "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err, tt.constraint); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithSearchPath(t *testing.T) {
	tests := []struct {
		name   string
		dsn    string
		schema string
		want   []string
	}{
		{
			name:   "url is converted to quoted key value pairs",
			dsn:    "postgres://u:p@localhost:5432/app?sslmode=disable",
			schema: "storefront",
			want:   []string{"dbname='app'", "host='localhost'", "sslmode='disable'", " search_path=storefront"},
		},
		{
			name:   "key value dsn is kept as written",
			dsn:    "host=localhost dbname=app",
			schema: "public",
			want:   []string{"host=localhost dbname=app search_path=public"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := withSearchPath(tt.dsn, tt.schema)
			for _, part := range tt.want {
				if !strings.Contains(got, part) {
					t.Errorf("withSearchPath() = %q, missing %q", got, part)
				}
			}
			if !strings.HasSuffix(got, " search_path="+tt.schema) {
				t.Errorf("withSearchPath() = %q, want search_path last", got)
			}
		})
	}

	if got := withSearchPath("host=localhost dbname=app", ""); got != "host=localhost dbname=app" {
		t.Errorf("expected dsn unchanged without schema, got %q", got)
	}
}
