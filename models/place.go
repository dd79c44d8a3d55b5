package models

import (
	"github.com/phillip/parenting-hub-go/apperr"
)

// Weekdays are the keys allowed in Place.Hours.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

type Hours struct {
	Open   string `json:"open,omitempty" bson:"open,omitempty" firestore:"open,omitempty"`
	Close  string `json:"close,omitempty" bson:"close,omitempty" firestore:"close,omitempty"`
	Closed bool   `json:"closed" bson:"closed" firestore:"closed"`
}

// Place is a family-friendly venue: parks, play centres, cafés, clinics.
type Place struct {
	Record `bson:",inline"`

	Name        string           `json:"name" bson:"name" firestore:"name" validate:"required,max=200"`
	Description string           `json:"description,omitempty" bson:"description,omitempty" firestore:"description,omitempty"`
	Category    string           `json:"category,omitempty" bson:"category,omitempty" firestore:"category,omitempty"`
	Address     string           `json:"address,omitempty" bson:"address,omitempty" firestore:"address,omitempty"`
	City        string           `json:"city,omitempty" bson:"city,omitempty" firestore:"city,omitempty"`
	Coordinates *Coordinates     `json:"coordinates,omitempty" bson:"coordinates,omitempty" firestore:"coordinates,omitempty"`
	Hours       map[string]Hours `json:"hours,omitempty" bson:"hours,omitempty" firestore:"hours,omitempty"`
	Phone       string           `json:"phone,omitempty" bson:"phone,omitempty" firestore:"phone,omitempty"`
	Website     string           `json:"website,omitempty" bson:"website,omitempty" firestore:"website,omitempty" validate:"omitempty,url"`
	ImageURL    string           `json:"imageUrl,omitempty" bson:"imageUrl,omitempty" firestore:"imageUrl,omitempty" validate:"omitempty,url"`
	Amenities   []string         `json:"amenities,omitempty" bson:"amenities,omitempty" firestore:"amenities,omitempty"`
	AgeRange    string           `json:"ageRange,omitempty" bson:"ageRange,omitempty" firestore:"ageRange,omitempty"`
	Rating      float64          `json:"rating,omitempty" bson:"rating,omitempty" firestore:"rating,omitempty" validate:"gte=0,lte=5"`
	Featured    bool             `json:"featured" bson:"featured" firestore:"featured"`
}

func (p *Place) Collection() string   { return CollectionPlaces }
func (p *Place) PrimaryImage() string { return p.ImageURL }
func (p *Place) ImageField() string   { return FieldImageURL }

func (p *Place) SetPrimaryImage(url string) { p.ImageURL = url }

func (p *Place) Validate() error {
	if err := validateStruct(p); err != nil {
		return err
	}
	return p.checkHours()
}

func (p *Place) ValidatePartial(fields ...string) error {
	if err := validatePartial(p, fields...); err != nil {
		return err
	}
	return p.checkHours()
}

func (p *Place) checkHours() error {
	for day := range p.Hours {
		if !isWeekday(day) {
			return apperr.NewValidationError("hours."+day, "is not a weekday")
		}
	}
	return nil
}

func isWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}
