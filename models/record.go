package models

import (
	"time"
)

// Collection names in the document store.
const (
	CollectionEvents        = "events"
	CollectionPlaces        = "places"
	CollectionProfessionals = "professionals"
	CollectionForumPosts    = "forumPosts"
	CollectionProducts      = "products"
	CollectionUsers         = "users"
)

// Field names owned by the gateway.
const (
	FieldID        = "id"
	FieldMongoID   = "_id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldCreatedBy = "createdBy"
	FieldUpdatedBy = "updatedBy"
	FieldImageURL  = "imageUrl"
)

// Record is embedded in every stored document. Only the gateway writes it.
type Record struct {
	ID        string    `json:"id" bson:"_id,omitempty" firestore:"-"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt,omitempty" firestore:"createdAt,serverTimestamp"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt,omitempty" firestore:"updatedAt,serverTimestamp"`
	CreatedBy string    `json:"createdBy,omitempty" bson:"createdBy,omitempty" firestore:"createdBy,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty" bson:"updatedBy,omitempty" firestore:"updatedBy,omitempty"`
}

// Base gives the gateway access to the embedded Record.
func (r *Record) Base() *Record { return r }

// Document is implemented by pointers to every entity type.
type Document interface {
	Collection() string
	Base() *Record
	Validate() error
}

// ImageHolder is implemented by entities with a single primary image.
type ImageHolder interface {
	PrimaryImage() string
}

// ImageLister is implemented by entities holding more than one image.
type ImageLister interface {
	ImageURLs() []string
}

// ImageSetter swaps the primary image. ImageField names the json field that
// changes when it does.
type ImageSetter interface {
	ImageHolder
	SetPrimaryImage(url string)
	ImageField() string
}

// RuleChecker is implemented by entities whose fields constrain each other.
// RuleFields lists the json fields the rules read.
type RuleChecker interface {
	CheckRules() error
	RuleFields() []string
}

// Coordinates struct for latitude and longitude
type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat" firestore:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" bson:"lng" firestore:"lng" validate:"gte=-180,lte=180"`
}
