// Package plugin defines pipeline stages and the registry that orders them.
//
// A stage is an explicit value implementing Stage. It declares which
// pipeline points it serves when registered and which rules use it through
// Assign; nothing is discovered implicitly. Once the registry is sealed the
// stage lists are fixed, so every run sees the same snapshot.
package plugin

import (
	"context"
	"fmt"

	"github.com/jpl-au/dms/internal/document"
)

// Point names a place in the document lifecycle where stages run.
type Point string

const (
	BeforeStorage   Point = "before_storage"
	Storage         Point = "storage"
	BeforeRetrieval Point = "before_retrieval"
	BeforeRemoval   Point = "before_removal"
	BeforeUpdate    Point = "before_update"
)

// Points lists every pipeline point in lifecycle order.
var Points = []Point{BeforeStorage, Storage, BeforeRetrieval, BeforeRemoval, BeforeUpdate}

// ParsePoint converts a configuration string to a Point.
func ParsePoint(s string) (Point, error) {
	for _, p := range Points {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown pipeline point %q", s)
}

// Class classifies what a stage does. The executor only treats Storage
// specially; the rest is descriptive and drives default ordering.
type Class string

const (
	ClassValidation Class = "validation"
	ClassSecurity   Class = "security"
	ClassTransfer   Class = "transfer"
	ClassMetadata   Class = "metadata"
	ClassInfo       Class = "info"
	ClassCache      Class = "cache"
	ClassStorage    Class = "storage"
)

// DefaultOrder gives each class a conventional position: validators first,
// storage last.
func (c Class) DefaultOrder() int {
	switch c {
	case ClassCache:
		return 5
	case ClassValidation:
		return 10
	case ClassSecurity:
		return 20
	case ClassMetadata:
		return 30
	case ClassTransfer:
		return 40
	case ClassInfo:
		return 50
	case ClassStorage:
		return 100
	}
	return 60
}

// Info describes a stage.
type Info struct {
	Name        string
	Title       string
	Description string
	Class       Class
	Order       int
	Active      bool
}

// Orderer is implemented by stages whose position differs per point. The
// storage stage, for instance, must run last when storing but first when
// retrieving, since nothing else has bytes to work on before it.
type Orderer interface {
	OrderAt(Point) int
}

// OrderAt returns the order s takes at point.
func OrderAt(s Stage, point Point) int {
	if o, ok := s.(Orderer); ok {
		return o.OrderAt(point)
	}
	return s.Info().Order
}

// Stage is one unit of pipeline behaviour.
//
// Work mutates doc in place and reports how the run should proceed. Work
// must not retain doc after returning.
type Stage interface {
	Info() Info
	Work(ctx context.Context, point Point, doc *document.Document) Outcome
}
