package catalog

// ApiItem is one studio record from the upstream catalog.
type ApiItem struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Code       string   `json:"code"`
	Address    string   `json:"address"`
	City       string   `json:"city"`
	Area       string   `json:"area"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	NumStudios int      `json:"numStudios"`
	Facilities []string `json:"facilities"`
	Photos     []string `json:"photos"`
}

// ApiResponse models the top-level structure of the upstream API's response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int       `json:"page"`
		PageSize int       `json:"pageSize"`
		Total    int       `json:"total"`
		Items    []ApiItem `json:"items"`
	} `json:"data"`
}
