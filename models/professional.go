package models

type Pricing struct {
	Consultation float64 `json:"consultation" bson:"consultation" firestore:"consultation" validate:"gte=0"`
	Currency     string  `json:"currency,omitempty" bson:"currency,omitempty" firestore:"currency,omitempty" validate:"omitempty,len=3"`
	Notes        string  `json:"notes,omitempty" bson:"notes,omitempty" firestore:"notes,omitempty"`
}

// Professional is a directory entry: midwives, lactation consultants, pediatricians.
type Professional struct {
	Record `bson:",inline"`

	Name      string   `json:"name" bson:"name" firestore:"name" validate:"required,max=200"`
	Specialty string   `json:"specialty" bson:"specialty" firestore:"specialty" validate:"required"`
	Bio       string   `json:"bio,omitempty" bson:"bio,omitempty" firestore:"bio,omitempty"`
	Email     string   `json:"email,omitempty" bson:"email,omitempty" firestore:"email,omitempty" validate:"omitempty,email"`
	Phone     string   `json:"phone,omitempty" bson:"phone,omitempty" firestore:"phone,omitempty"`
	Website   string   `json:"website,omitempty" bson:"website,omitempty" firestore:"website,omitempty" validate:"omitempty,url"`
	Address   string   `json:"address,omitempty" bson:"address,omitempty" firestore:"address,omitempty"`
	City      string   `json:"city,omitempty" bson:"city,omitempty" firestore:"city,omitempty"`
	Pricing   Pricing  `json:"pricing" bson:"pricing" firestore:"pricing"`
	Languages []string `json:"languages,omitempty" bson:"languages,omitempty" firestore:"languages,omitempty"`
	Online    bool     `json:"online" bson:"online" firestore:"online"`
	Verified  bool     `json:"verified" bson:"verified" firestore:"verified"`
	ImageURL  string   `json:"imageUrl,omitempty" bson:"imageUrl,omitempty" firestore:"imageUrl,omitempty" validate:"omitempty,url"`
}

func (p *Professional) Collection() string   { return CollectionProfessionals }
func (p *Professional) PrimaryImage() string { return p.ImageURL }
func (p *Professional) ImageField() string   { return FieldImageURL }

func (p *Professional) SetPrimaryImage(url string) { p.ImageURL = url }

func (p *Professional) Validate() error { return validateStruct(p) }

func (p *Professional) ValidatePartial(fields ...string) error { return validatePartial(p, fields...) }
