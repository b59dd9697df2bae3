package cache

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

const anyTenant = "_"

// Key identifies one cached computation. Params with nil values are left
// out, so omitted and nil parameters produce the same key.
type Key struct {
	Op       string
	TenantID string
	Params   map[string]any
}

// String renders "<pool>:<tenant>:<op>:<digest>". Pool, tenant and op stay
// readable so invalidation can match on a prefix; the parameters are hashed
// to keep keys short.
func (k Key) String(pool Pool) string {
	tenant := k.TenantID
	if tenant == "" {
		tenant = anyTenant
	}
	return fmt.Sprintf("%s:%s:%s:%016x", pool, tenant, k.Op, xxhash.Sum64String(k.canonical()))
}

// canonical is op followed by name:value pairs sorted by name.
func (k Key) canonical() string {
	names := make([]string, 0, len(k.Params)+1)
	values := make(map[string]string, len(k.Params)+1)
	if k.TenantID != "" {
		names = append(names, "tenant_id")
		values["tenant_id"] = k.TenantID
	}
	for name, v := range k.Params {
		s, ok := formatParam(v)
		if !ok {
			continue
		}
		names = append(names, name)
		values[name] = s
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(k.Op)
	for _, n := range names {
		b.WriteByte('|')
		b.WriteString(n)
		b.WriteByte(':')
		b.WriteString(values[n])
	}
	return b.String()
}

func formatParam(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		rv = rv.Elem()
		v = rv.Interface()
	}
	switch x := v.(type) {
	case string:
		return x, true
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case []string:
		return strings.Join(x, ","), true
	case fmt.Stringer:
		return x.String(), true
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return "", false
	}
	return fmt.Sprint(v), true
}

// poolPrefix is the key prefix shared by every entry of a pool, optionally
// narrowed to one tenant and one operation.
func poolPrefix(pool Pool, tenantID, op string) string {
	if tenantID == "" {
		return string(pool) + ":"
	}
	if op == "" {
		return fmt.Sprintf("%s:%s:", pool, tenantID)
	}
	return fmt.Sprintf("%s:%s:%s:", pool, tenantID, op)
}

// SortedIDs returns a sorted, de-duplicated copy of ids.
func SortedIDs(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}
