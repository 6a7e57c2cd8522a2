package store

// SeedCatalog is the fixed plugin catalog inserted when a backend starts
// empty. Both backends seed the same entries so a fallback start presents
// the same storefront as a fresh durable start.
func SeedCatalog() []NewPlugin {
	return []NewPlugin{
		{
			Name:        "Analytics Dashboard",
			Price:       49.99,
			Description: "Real-time traffic and conversion analytics with exportable reports.",
		},
		{
			Name:        "SEO Toolkit",
			Price:       29.99,
			Description: "Sitemap generation, meta tag management and search ranking insights.",
		},
		{
			Name:        "Live Chat Widget",
			Price:       19.99,
			Description: "Embeddable customer chat with canned responses and offline inbox.",
		},
		{
			Name:        "Backup Scheduler",
			Price:       14.99,
			Description: "Automated nightly backups with one-click restore points.",
		},
		{
			Name:        "Multi-Currency Checkout",
			Price:       39.99,
			Description: "Display prices and accept orders in 30+ currencies with live rates.",
		},
	}
}
