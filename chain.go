package batchz

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Chainable is any component that can take part in a Chain. Pipeline and
// Chain both implement it.
type Chainable interface {
	Identity() Identity
	Process(ctx context.Context, item any) (any, error)
}

// Chain runs Chainables in the order they were added, with each one's output
// becoming the next one's input. A JSON pipeline feeding a CSV pipeline
// feeding a Stream pipeline is the typical use.
type Chain struct {
	identity Identity
	links    []Chainable
	mu       sync.RWMutex
}

// NewChain creates a Chain with optional initial links.
func NewChain(identity Identity, links ...Chainable) *Chain {
	return &Chain{
		identity: identity,
		links:    slices.Clone(links),
	}
}

// Add appends one or more links to the chain.
// Returns the chain instance to allow method chaining.
func (c *Chain) Add(links ...Chainable) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links = append(c.links, links...)
	return c
}

// Process runs every link in order. If a link fails, execution stops and
// that link's result is returned with an *Error whose path starts at the
// chain.
func (c *Chain) Process(ctx context.Context, item any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.RLock()
	links := slices.Clone(c.links)
	c.mu.RUnlock()

	result := item
	for _, link := range links {
		out, err := link.Process(ctx, result)
		if err != nil {
			var chainErr *Error[any]
			if errors.As(err, &chainErr) {
				chainErr.Path = append([]Identity{c.identity}, chainErr.Path...)
				return out, chainErr
			}
			return out, &Error[any]{
				InputData: result,
				Err:       fmt.Errorf("%s: %w", link.Identity().Name(), err),
				Path:      []Identity{c.identity, link.Identity()},
			}
		}
		result = out
	}
	return result, nil
}

// Execute runs the chain and returns the final result, or the result of the
// link that failed.
func (c *Chain) Execute(ctx context.Context, item any) any {
	result, _ := c.Process(ctx, item)
	return result
}

// Len returns the number of links.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.links)
}

// Identity returns the identity of this chain.
func (c *Chain) Identity() Identity {
	return c.identity
}
