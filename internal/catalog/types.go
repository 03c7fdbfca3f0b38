package catalog

// Product is a menu entry read from the pizzas table.
type Product struct {
	ID          string   `dynamodbav:"id" json:"id"`
	Name        string   `dynamodbav:"name" json:"name"`
	Description string   `dynamodbav:"description" json:"description"`
	BasePrice   float64  `dynamodbav:"basePrice" json:"basePrice"`
	Images      []string `dynamodbav:"images,omitempty" json:"images,omitempty"`
}

// Thumbnail is the first image or "".
func (p Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
