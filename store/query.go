package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Filter is a typed query filter, compiled to bson just before dispatch.
type Filter struct {
	clauses bson.M
}

func NewFilter() *Filter {
	return &Filter{clauses: bson.M{}}
}

// Eq matches documents whose field equals value.
func (f *Filter) Eq(field string, value any) *Filter {
	f.clauses[field] = value
	return f
}

// In matches documents whose field equals any of the given values.
func (f *Filter) In(field string, values ...any) *Filter {
	f.clauses[field] = bson.M{"$in": values}
	return f
}

func (f *Filter) Build() bson.M {
	if f == nil {
		return bson.M{}
	}
	return f.clauses
}

// Update is a typed update document builder. Build always stamps
// updated_at into $set, so a compiled update is never empty.
type Update struct {
	set         bson.M
	setOnInsert bson.M
	unset       bson.M
	pull        bson.M
	push        bson.M
}

func NewUpdate() *Update {
	return &Update{}
}

// Set writes field on every matching document.
func (u *Update) Set(field string, value any) *Update {
	if u.set == nil {
		u.set = bson.M{}
	}
	u.set[field] = value
	return u
}

// SetOnInsert writes field only when an upsert creates the document,
// leaving it untouched on subsequent writes.
func (u *Update) SetOnInsert(field string, value any) *Update {
	if u.setOnInsert == nil {
		u.setOnInsert = bson.M{}
	}
	u.setOnInsert[field] = value
	return u
}

// Unset removes field from matching documents.
func (u *Update) Unset(field string) *Update {
	if u.unset == nil {
		u.unset = bson.M{}
	}
	u.unset[field] = ""
	return u
}

// Pull removes matching values from an array field.
func (u *Update) Pull(field string, value any) *Update {
	if u.pull == nil {
		u.pull = bson.M{}
	}
	u.pull[field] = value
	return u
}

// Push appends value to an array field.
func (u *Update) Push(field string, value any) *Update {
	if u.push == nil {
		u.push = bson.M{}
	}
	u.push[field] = value
	return u
}

// Build compiles the update to bson, stamping updated_at with now.
func (u *Update) Build(now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	for k, v := range u.set {
		set[k] = v
	}

	update := bson.M{"$set": set}
	if len(u.setOnInsert) > 0 {
		update["$setOnInsert"] = u.setOnInsert
	}
	if len(u.unset) > 0 {
		update["$unset"] = u.unset
	}
	if len(u.pull) > 0 {
		update["$pull"] = u.pull
	}
	if len(u.push) > 0 {
		update["$push"] = u.push
	}
	return update
}

// SortField orders find results on one field.
type SortField struct {
	Field string
	Desc  bool
}

// FindOpts narrows find results: Projection lists the fields to return,
// Limit of 0 means no limit.
type FindOpts struct {
	Projection []string
	Sort       []SortField
	Limit      int64
}
