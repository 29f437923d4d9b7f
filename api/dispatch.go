package api

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/tuition-engine/auth"
	"github.com/warp/tuition-engine/billing"
	"github.com/warp/tuition-engine/metrics"
)

// =============================================================================
// ACTION TABLE
// =============================================================================

// route is one action of the dispatch table.
type route struct {
	Role    auth.Role // empty means public
	Status  int       // success status
	Message string
	invoke  func(ctx context.Context, c *call) (any, error)
}

// call is one decoded request.
type call struct {
	r        *http.Request
	values   map[string]json.RawMessage
	identity auth.Identity
}

func (c *call) scope() billing.Scope { return c.identity.Scope() }

// attachment is a binary result written without the JSON envelope.
type attachment struct {
	Filename    string
	ContentType string
	Body        []byte
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind decodes and validates the params of an action before calling fn.
func bind[P any](fn func(ctx context.Context, c *call, p P) (any, error)) func(context.Context, *call) (any, error) {
	return func(ctx context.Context, c *call) (any, error) {
		var p P
		if err := decodeParams(c.values, &p); err != nil {
			return nil, err
		}
		if err := validateParams(p); err != nil {
			return nil, err
		}
		return fn(ctx, c, p)
	}
}

func validateParams(p any) error {
	if reflect.Indirect(reflect.ValueOf(p)).Kind() != reflect.Struct {
		return nil
	}
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return billing.Invalid("", "Invalid request parameters")
	}
	fe := fields[0]
	switch fe.Tag() {
	case "required":
		return billing.Invalid(fe.Field(), "%s is required", fe.Field())
	case "gt", "gte", "min":
		return billing.Invalid(fe.Field(), "%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return billing.Invalid(fe.Field(), "%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return billing.Invalid(fe.Field(), "%s must be one of: %s", fe.Field(), fe.Param())
	}
	return billing.Invalid(fe.Field(), "%s is invalid", fe.Field())
}

// =============================================================================
// DISPATCH
// =============================================================================

// ServeAction is the single API endpoint. The action name and its params
// come from the JSON body or the query string.
func (h *Handler) ServeAction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	values, err := readValues(r)
	if err != nil {
		h.writeFailure(w, http.StatusBadRequest, err.Error())
		metrics.ObserveAction("", http.StatusBadRequest, time.Since(start))
		return
	}

	action := stringValue(values["action"])
	rt, ok := h.routes[action]
	if !ok {
		h.writeFailure(w, http.StatusBadRequest, "No valid action provided")
		metrics.ObserveAction("", http.StatusBadRequest, time.Since(start))
		return
	}

	status := h.dispatch(w, r, action, rt, values)
	metrics.ObserveAction(action, status, time.Since(start))
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, action string, rt route, values map[string]json.RawMessage) int {
	identity, authed := auth.IdentityFromContext(r.Context())
	if rt.Role != "" {
		if !authed {
			h.writeFailure(w, http.StatusUnauthorized, "Authentication required")
			return http.StatusUnauthorized
		}
		if !auth.RoleAtLeast(identity.Role, rt.Role) {
			h.writeFailure(w, http.StatusForbidden, "Insufficient permissions")
			return http.StatusForbidden
		}
	}

	c := &call{r: r, values: values, identity: identity}
	result, err := rt.invoke(r.Context(), c)
	if err != nil {
		return h.writeError(w, r, action, err)
	}

	if file, ok := result.(*attachment); ok {
		w.Header().Set("Content-Type", file.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
		w.WriteHeader(http.StatusOK)
		w.Write(file.Body)
		return http.StatusOK
	}

	status := rt.Status
	if status == 0 {
		status = http.StatusOK
	}
	h.writeSuccess(w, status, result, rt.Message)
	return status
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func (h *Handler) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestID(r)),
		)
	})
}

// =============================================================================
// PARAM DECODING
// =============================================================================

const maxBodyBytes = 1 << 20

// readValues merges query parameters with a JSON object body. Body fields
// win over query fields of the same name.
func readValues(r *http.Request) (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)
	for key, vs := range r.URL.Query() {
		if len(vs) == 0 {
			continue
		}
		raw, _ := json.Marshal(vs[0])
		values[key] = raw
	}

	if r.Body == nil || r.Method == http.MethodGet {
		return values, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, billing.Invalid("body", "Invalid request body")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return values, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, billing.Invalid("body", "Invalid JSON body")
	}
	for k, v := range fields {
		values[k] = v
	}
	return values, nil
}

func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

var textUnmarshaler = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// decodeParams fills the json-tagged fields of dst. Scalars accept both
// JSON literals and strings, so query parameters and loosely typed bodies
// decode the same way.
func decodeParams(values map[string]json.RawMessage, dst any) error {
	v := reflect.ValueOf(dst).Elem()
	if v.Kind() != reflect.Struct {
		return nil
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		raw, ok := values[name]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if err := setField(v.Field(i), raw); err != nil {
			return billing.Invalid(name, "Invalid value for %s", name)
		}
	}
	return nil
}

func setField(field reflect.Value, raw json.RawMessage) error {
	if field.Kind() == reflect.Ptr {
		elem := reflect.New(field.Type().Elem())
		if err := setField(elem.Elem(), raw); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	if reflect.PointerTo(field.Type()).Implements(textUnmarshaler) {
		text := strings.TrimSpace(stringValue(raw))
		if text == "" {
			return nil
		}
		return field.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text))
	}

	text := strings.TrimSpace(stringValue(raw))
	switch field.Kind() {
	case reflect.String:
		field.SetString(text)
	case reflect.Int, reflect.Int32, reflect.Int64:
		if text == "" {
			return nil
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		if text == "" {
			return nil
		}
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return err
		}
		field.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return json.Unmarshal(raw, field.Addr().Interface())
	}
	return nil
}
