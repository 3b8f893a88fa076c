package entity

type Category struct {
	ID     int64  `json:"id"`
	NameUz string `json:"name_uz"`
	NameRu string `json:"name_ru"`
	NameEn string `json:"name_en"`
	Icon   string `json:"icon"`
	Color  string `json:"color"`
}

type SiteImage struct {
	ID      int64  `json:"id"`
	Image   string `json:"image"`
	Caption string `json:"caption"`
	Order   int    `json:"order"`
}

type HistoricalSite struct {
	ID     int64  `json:"id"`
	NameUz string `json:"name_uz"`
	NameRu string `json:"name_ru"`
	NameEn string `json:"name_en"`

	ShortDescriptionUz string `json:"short_description_uz"`
	ShortDescriptionRu string `json:"short_description_ru"`
	ShortDescriptionEn string `json:"short_description_en"`
	DescriptionUz      string `json:"description_uz,omitempty"`
	DescriptionRu      string `json:"description_ru,omitempty"`
	DescriptionEn      string `json:"description_en,omitempty"`

	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Address   string `json:"address,omitempty"`
	HowToGet  string `json:"how_to_get,omitempty"`

	Category     *Category   `json:"category"`
	BuiltDate    string      `json:"built_date,omitempty"`
	WorkingHours string      `json:"working_hours,omitempty"`
	TicketPrice  string      `json:"ticket_price,omitempty"`
	VideoURL     string      `json:"video_url,omitempty"`
	MainImage    *string     `json:"main_image"`
	Images       []SiteImage `json:"images,omitempty"`
	GuidesCount  int         `json:"guides_count,omitempty"`
}

// Guide is the public profile of a guide. Contact details are not part of it,
// they are only revealed by a successful PaymentConfirmation.
type Guide struct {
	ID                  int64    `json:"id"`
	FullName            string   `json:"full_name"`
	Bio                 string   `json:"bio,omitempty"`
	Avatar              *string  `json:"avatar"`
	Languages           []string `json:"languages"`
	ExperienceYears     int      `json:"experience_years"`
	PricePerHour        string   `json:"price_per_hour"`
	AverageTourDuration int      `json:"average_tour_duration"`
	Rating              string   `json:"rating"`
	TotalReviews        int      `json:"total_reviews"`
	TotalTours          int      `json:"total_tours,omitempty"`
	IsVerified          bool     `json:"is_verified"`

	SpecializationSites []HistoricalSite `json:"specialization_sites,omitempty"`
}

type GuideReview struct {
	ID         int64  `json:"id"`
	AuthorName string `json:"author_name"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
	CreatedAt  string `json:"created_at"`
}

type MapMarker struct {
	ID            int64  `json:"id"`
	NameRu        string `json:"name_ru"`
	NameUz        string `json:"name_uz"`
	NameEn        string `json:"name_en"`
	Latitude      string `json:"latitude"`
	Longitude     string `json:"longitude"`
	CategoryColor string `json:"category__color"`
	CategoryIcon  string `json:"category__icon"`
}
