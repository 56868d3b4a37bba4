// Package storefront is a client for a GraphQL storefront commerce API
// (Shopify Storefront API shape). It implements cart.Backend and
// product.Catalog.
package storefront

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// AccessTokenHeader carries the public storefront access token.
const AccessTokenHeader = "X-Shopify-Storefront-Access-Token"

const maxResponseSize = 4 << 20

// Config configures a Client.
type Config struct {
	// Endpoint is the GraphQL URL, e.g.
	// https://lumiere.myshopify.com/api/2024-10/graphql.json.
	Endpoint string
	// AccessToken is the storefront access token.
	AccessToken string
	// Timeout bounds every request. Zero means 10s.
	Timeout time.Duration
	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client talks to the storefront API.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// New validates the GraphQL documents and returns a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("storefront endpoint is required")
	}
	if err := validateDocuments(); err != nil {
		return nil, errors.Wrap(err, "validate documents")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}

	return &Client{
		endpoint: cfg.Endpoint,
		token:    cfg.AccessToken,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport, opts...),
		},
	}, nil
}

// ResponseError is one entry of the top-level "errors" array.
type ResponseError struct {
	Message string
	// Code is extensions.code, e.g. THROTTLED or INTERNAL_SERVER_ERROR.
	Code string
	// InvalidInput is set when the API rejected a variable value
	// (extensions.problems is present).
	InvalidInput bool
}

// GraphQLError reports top-level errors returned by the API.
type GraphQLError struct {
	Op     string
	Errors []ResponseError
}

func (e *GraphQLError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, re := range e.Errors {
		msgs[i] = re.Message
		if re.Code != "" {
			msgs[i] += " (" + re.Code + ")"
		}
	}
	return fmt.Sprintf("%s: graphql: %s", e.Op, strings.Join(msgs, "; "))
}

// Messages returns the error messages.
func (e *GraphQLError) Messages() []string {
	msgs := make([]string, len(e.Errors))
	for i, re := range e.Errors {
		msgs[i] = re.Message
	}
	return msgs
}

// notFoundCodes are the extensions.code values meaning the requested object
// does not exist or its identifier is malformed.
var notFoundCodes = map[string]bool{
	"NOT_FOUND":         true,
	"INVALID":           true,
	"INVALID_GLOBAL_ID": true,
}

// NotFound reports whether every error says the requested object is missing
// or its identifier was rejected. Throttling and server errors are not.
func (e *GraphQLError) NotFound() bool {
	if len(e.Errors) == 0 {
		return false
	}
	for _, re := range e.Errors {
		if !re.InvalidInput && !notFoundCodes[re.Code] {
			return false
		}
	}
	return true
}

// FieldError is one entry of a mutation's userErrors.
type FieldError struct {
	Field   []string
	Message string
}

// UserError reports input rejected by a mutation.
type UserError struct {
	Op     string
	Errors []FieldError
}

func (e *UserError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		if len(fe.Field) > 0 {
			msgs[i] = strings.Join(fe.Field, ".") + ": " + fe.Message
		} else {
			msgs[i] = fe.Message
		}
	}
	return fmt.Sprintf("%s: rejected: %s", e.Op, strings.Join(msgs, "; "))
}

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Ping runs a minimal query to check reachability and credentials.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, opShop, nil, func(d *jx.Decoder) error { return d.Skip() })
}

// do posts op with the variables written by vars and hands the "data" value
// to data.
func (c *Client) do(ctx context.Context, op *operation, vars func(e *jx.Encoder), data func(d *jx.Decoder) error) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("query")
	e.Str(op.query)
	e.FieldStart("operationName")
	e.Str(op.name)
	if vars != nil {
		e.FieldStart("variables")
		e.ObjStart()
		vars(&e)
		e.ObjEnd()
	}
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrapf(err, "%s: create request", op.name)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set(AccessTokenHeader, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s: send", op.name)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return errors.Wrapf(err, "%s: read response", op.name)
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > 256 {
			body = body[:256]
		}
		return &StatusError{Op: op.name, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return decodeResponse(op.name, body, data)
}

func decodeResponse(op string, body []byte, data func(d *jx.Decoder) error) error {
	var (
		gqlErrs []ResponseError
		sawData bool
	)
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "data":
			if d.Next() == jx.Null {
				return d.Null()
			}
			sawData = true
			return data(d)
		case "errors":
			return d.Arr(func(d *jx.Decoder) error {
				re, err := decodeResponseError(d)
				gqlErrs = append(gqlErrs, re)
				return err
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return errors.Wrapf(err, "%s: decode response", op)
	}
	if len(gqlErrs) > 0 {
		return &GraphQLError{Op: op, Errors: gqlErrs}
	}
	if !sawData {
		return errors.Errorf("%s: response has no data", op)
	}
	return nil
}

func decodeResponseError(d *jx.Decoder) (ResponseError, error) {
	var re ResponseError
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "message":
			msg, err := d.Str()
			re.Message = msg
			return err
		case "extensions":
			return nullable(func(d *jx.Decoder) error {
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					switch string(key) {
					case "code":
						if d.Next() != jx.String {
							return d.Skip()
						}
						code, err := d.Str()
						re.Code = code
						return err
					case "problems":
						re.InvalidInput = d.Next() != jx.Null
						return d.Skip()
					default:
						return d.Skip()
					}
				})
			})(d)
		default:
			return d.Skip()
		}
	})
	return re, err
}

// encodePage writes the first/after pagination variables.
func encodePage(e *jx.Encoder, first int, after string) {
	e.FieldStart("first")
	e.Int(first)
	e.FieldStart("after")
	if after == "" {
		e.Null()
	} else {
		e.Str(after)
	}
}
