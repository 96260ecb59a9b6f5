package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// params reads request fields from the JSON body first, then the query
// string. Clients send ids either way.
type params struct {
	body  map[string]any
	query url.Values
}

func readParams(r *http.Request) (params, error) {
	p := params{query: r.URL.Query()}
	if err := decodeBody(r, &p.body); err != nil {
		return params{}, badRequest(err.Error())
	}
	return p, nil
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func (p params) str(key string) string {
	if value, ok := p.body[key]; ok && value != nil {
		switch v := value.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return p.query.Get(key)
}

// opt is str for keys the request may leave out; nil means the key was not
// sent at all.
func (p params) opt(key string) *string {
	_, inBody := p.body[key]
	if !inBody && !p.query.Has(key) {
		return nil
	}
	value := p.str(key)
	return &value
}

func (p params) number(key string) (int, error) {
	raw := p.str(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(key + " must be a number.")
	}
	return n, nil
}

// nested returns the object under key, or p itself when there is none.
func (p params) nested(key string) params {
	if obj, ok := p.body[key].(map[string]any); ok {
		return params{body: obj, query: p.query}
	}
	return p
}
