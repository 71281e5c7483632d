package svc

import (
	"context"
	"errors"
	"iter"
	"maps"
	"reflect"
	"strings"
)

// Page is one response of a paginated call.
type Page struct {
	Number int
	Output map[string]any
	// Tokens are the continuation tokens keyed by input token name. Empty on
	// the last page.
	Tokens map[string]any

	desc *PaginationDescriptor
}

// Items returns the values of the result keys, concatenated.
func (p *Page) Items() []any {
	var items []any

	for _, key := range p.desc.ResultKeys {
		switch v := lookupPath(p.Output, key).(type) {
		case []any:
			items = append(items, v...)
		case nil:
		default:
			items = append(items, v)
		}
	}

	return items
}

// Paginator lazily walks the pages of an operation. It is forward-only and
// cannot be restarted.
type Paginator struct {
	client *Client
	op     *Operation
	params map[string]any
	opts   []CallOption

	sent    map[string]any
	next    map[string]any
	started bool
	done    bool
	pages   int
}

func newPaginator(client *Client, op *Operation, params map[string]any, opts []CallOption) *Paginator {
	return &Paginator{
		client: client,
		op:     op,
		params: maps.Clone(params),
		opts:   opts,
	}
}

// HasNext reports whether another request will be made. The request may
// still end the sequence if the service repeats its last token.
func (p *Paginator) HasNext() bool {
	return !p.done
}

// PageCount returns the number of pages yielded so far.
func (p *Paginator) PageCount() int {
	return p.pages
}

// Next fetches the next page. It returns ErrNoMorePages once the sequence
// has ended.
func (p *Paginator) Next(ctx context.Context) (*Page, error) {
	if p.done {
		return nil, ErrNoMorePages
	}

	params := maps.Clone(p.params)
	if params == nil {
		params = map[string]any{}
	}

	if p.started {
		maps.Copy(params, p.next)
	}

	out, err := p.client.Call(ctx, p.op.Name, params, p.opts...)
	if err != nil {
		return nil, err
	}

	p.sent = p.next
	p.started = true
	desc := p.op.Paginator
	tokens := nextTokens(desc, out)

	switch {
	case len(tokens) == 0:
		p.done = true
	case p.sent != nil && sameTokens(tokens, p.sent):
		p.done = true

		return nil, ErrNoMorePages
	case desc.MoreResults != "" && !truthy(lookupPath(out, desc.MoreResults)):
		p.done = true
		tokens = nil
	}

	p.next = tokens
	p.pages++

	return &Page{Number: p.pages, Output: out, Tokens: tokens, desc: desc}, nil
}

// All fetches every remaining page.
func (p *Paginator) All(ctx context.Context) ([]*Page, error) {
	var pages []*Page

	for page, err := range p.Pages(ctx) {
		if err != nil {
			return pages, err
		}

		pages = append(pages, page)
	}

	return pages, nil
}

// ForEach calls fn for each remaining page until fn returns false.
func (p *Paginator) ForEach(ctx context.Context, fn func(*Page) bool) error {
	for page, err := range p.Pages(ctx) {
		if err != nil {
			return err
		}

		if !fn(page) {
			return nil
		}
	}

	return nil
}

// Pages returns an iterator over the remaining pages. A failed request is
// yielded once as an error and ends the iteration.
func (p *Paginator) Pages(ctx context.Context) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		for p.HasNext() {
			page, err := p.Next(ctx)
			if errors.Is(err, ErrNoMorePages) {
				return
			}

			if !yield(page, err) || err != nil {
				return
			}
		}
	}
}

func nextTokens(desc *PaginationDescriptor, out map[string]any) map[string]any {
	tokens := map[string]any{}

	for i, path := range desc.OutputTokens {
		if i >= len(desc.InputTokens) {
			break
		}

		v := lookupPath(out, path)
		if v == nil || v == "" {
			continue
		}

		tokens[desc.InputTokens[i]] = v
	}

	return tokens
}

func sameTokens(a, b map[string]any) bool {
	return maps.EqualFunc(a, b, func(x, y any) bool {
		return reflect.DeepEqual(x, y)
	})
}

// lookupPath resolves a dotted member path in an output map.
func lookupPath(out map[string]any, path string) any {
	var cur any = out

	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}

		cur = m[part]
	}

	return cur
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	default:
		return v != nil
	}
}
