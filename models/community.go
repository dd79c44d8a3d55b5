package models

// ForumPost is a community discussion thread.
type ForumPost struct {
	Record `bson:",inline"`

	Title      string   `json:"title" bson:"title" firestore:"title" validate:"required,max=200"`
	Content    string   `json:"content" bson:"content" firestore:"content" validate:"required"`
	Category   string   `json:"category,omitempty" bson:"category,omitempty" firestore:"category,omitempty"`
	AuthorName string   `json:"authorName,omitempty" bson:"authorName,omitempty" firestore:"authorName,omitempty"`
	Tags       []string `json:"tags,omitempty" bson:"tags,omitempty" firestore:"tags,omitempty"`
	Likes      int      `json:"likes" bson:"likes" firestore:"likes" validate:"gte=0"`
	Replies    int      `json:"replies" bson:"replies" firestore:"replies" validate:"gte=0"`
}

func (p *ForumPost) Collection() string { return CollectionForumPosts }

func (p *ForumPost) Validate() error { return validateStruct(p) }

func (p *ForumPost) ValidatePartial(fields ...string) error { return validatePartial(p, fields...) }

// Product is a second-hand marketplace listing.
type Product struct {
	Record `bson:",inline"`

	Title       string   `json:"title" bson:"title" firestore:"title" validate:"required,max=200"`
	Description string   `json:"description,omitempty" bson:"description,omitempty" firestore:"description,omitempty"`
	Price       float64  `json:"price" bson:"price" firestore:"price" validate:"gte=0"`
	Currency    string   `json:"currency,omitempty" bson:"currency,omitempty" firestore:"currency,omitempty" validate:"omitempty,len=3"`
	Condition   string   `json:"condition,omitempty" bson:"condition,omitempty" firestore:"condition,omitempty" validate:"omitempty,oneof=new like-new used"`
	Category    string   `json:"category,omitempty" bson:"category,omitempty" firestore:"category,omitempty"`
	SellerName  string   `json:"sellerName,omitempty" bson:"sellerName,omitempty" firestore:"sellerName,omitempty"`
	Contact     string   `json:"contact,omitempty" bson:"contact,omitempty" firestore:"contact,omitempty"`
	Images      []string `json:"images,omitempty" bson:"images,omitempty" firestore:"images,omitempty" validate:"omitempty,dive,url"`
	Sold        bool     `json:"sold" bson:"sold" firestore:"sold"`
}

func (p *Product) Collection() string { return CollectionProducts }

func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func (p *Product) ImageField() string { return "images" }

func (p *Product) ImageURLs() []string { return p.Images }

// SetPrimaryImage replaces the first image, or adds one if there is none.
// An empty url removes the first image.
func (p *Product) SetPrimaryImage(url string) {
	switch {
	case url == "" && len(p.Images) > 0:
		p.Images = append([]string(nil), p.Images[1:]...)
	case url == "":
	case len(p.Images) == 0:
		p.Images = []string{url}
	default:
		images := append([]string(nil), p.Images...)
		images[0] = url
		p.Images = images
	}
}

func (p *Product) Validate() error { return validateStruct(p) }

func (p *Product) ValidatePartial(fields ...string) error { return validatePartial(p, fields...) }

// User is a profile document. This service only reads it.
type User struct {
	Record `bson:",inline"`

	DisplayName string `json:"displayName,omitempty" bson:"displayName,omitempty" firestore:"displayName,omitempty"`
	Email       string `json:"email,omitempty" bson:"email,omitempty" firestore:"email,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty" bson:"photoUrl,omitempty" firestore:"photoUrl,omitempty"`
	Role        string `json:"role,omitempty" bson:"role,omitempty" firestore:"role,omitempty"`
}

func (u *User) Collection() string { return CollectionUsers }

func (u *User) Validate() error { return validateStruct(u) }
