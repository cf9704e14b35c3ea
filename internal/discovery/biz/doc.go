// Package biz implements the discovery search use cases: rebuilding the
// search projection, grouped search, facets and entity detail views.
package biz
