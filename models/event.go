package models

import (
	"time"

	"github.com/phillip/parenting-hub-go/apperr"
)

type Organizer struct {
	Name    string `json:"name" bson:"name" firestore:"name"`
	Email   string `json:"email,omitempty" bson:"email,omitempty" firestore:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty" bson:"phone,omitempty" firestore:"phone,omitempty"`
	Website string `json:"website,omitempty" bson:"website,omitempty" firestore:"website,omitempty" validate:"omitempty,url"`
}

// Event is a workshop, meetup or class listed on the agenda.
type Event struct {
	Record `bson:",inline"`

	Title       string     `json:"title" bson:"title" firestore:"title" validate:"required,max=200"`
	Description string     `json:"description,omitempty" bson:"description,omitempty" firestore:"description,omitempty"`
	Category    string     `json:"category,omitempty" bson:"category,omitempty" firestore:"category,omitempty"`
	Date        time.Time  `json:"date" bson:"date" firestore:"date" validate:"required"`
	EndDate     *time.Time `json:"endDate,omitempty" bson:"endDate,omitempty" firestore:"endDate,omitempty"`
	Location    string     `json:"location,omitempty" bson:"location,omitempty" firestore:"location,omitempty"`
	Address     string     `json:"address,omitempty" bson:"address,omitempty" firestore:"address,omitempty"`
	Organizer   Organizer  `json:"organizer" bson:"organizer" firestore:"organizer"`
	// Price and IsFree are always stored, zero values included.
	Price    float64  `json:"price" bson:"price" firestore:"price" validate:"gte=0"`
	IsFree   bool     `json:"isFree" bson:"isFree" firestore:"isFree"`
	Capacity int      `json:"capacity,omitempty" bson:"capacity,omitempty" firestore:"capacity,omitempty" validate:"gte=0"`
	AgeRange string   `json:"ageRange,omitempty" bson:"ageRange,omitempty" firestore:"ageRange,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty" bson:"imageUrl,omitempty" firestore:"imageUrl,omitempty" validate:"omitempty,url"`
	Tags     []string `json:"tags,omitempty" bson:"tags,omitempty" firestore:"tags,omitempty"`
	Featured bool     `json:"featured" bson:"featured" firestore:"featured"`
}

func (e *Event) Collection() string   { return CollectionEvents }
func (e *Event) PrimaryImage() string { return e.ImageURL }
func (e *Event) ImageField() string   { return FieldImageURL }

func (e *Event) SetPrimaryImage(url string) { e.ImageURL = url }

func (e *Event) Validate() error {
	if err := validateStruct(e); err != nil {
		return err
	}
	return e.CheckRules()
}

func (e *Event) ValidatePartial(fields ...string) error {
	if err := validatePartial(e, fields...); err != nil {
		return err
	}
	return e.CheckRules()
}

func (e *Event) RuleFields() []string {
	return []string{"price", "isFree", "date", "endDate"}
}

// CheckRules enforces that a free event has no price and does not end before
// it starts.
func (e *Event) CheckRules() error {
	var errs []apperr.FieldError
	if e.IsFree && e.Price > 0 {
		errs = append(errs, apperr.FieldError{Field: "price", Message: "must be 0 when isFree is set"})
	}
	if e.EndDate != nil && !e.Date.IsZero() && e.EndDate.Before(e.Date) {
		errs = append(errs, apperr.FieldError{Field: "endDate", Message: "must not be before date"})
	}
	if len(errs) > 0 {
		return apperr.NewValidationErrors(errs)
	}
	return nil
}
