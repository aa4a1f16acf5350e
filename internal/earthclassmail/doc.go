// Package earthclassmail lists the mail pieces stored in an Earth Class
// Mail account.
//
// The package covers one endpoint, the bulk-download listing:
//
//	GET https://api.earthclassmail.com/v1/bulk-download?per_page=500
//	x-api-key: <key>
//
// which answers with
//
//	{"data": [{"id": "...", "created_at": "2021-07-04T10:00:00Z",
//	           "media": [{"url": "...", "tags": ["scan"], "content_type": "image/jpeg"}]}]}
//
// Older responses name the identifier "piece_id"; both are accepted.
//
// # Listing
//
//	catalog := earthclassmail.NewCatalog(http.NewClient(), earthclassmail.Options{
//	    APIKey: key,
//	    Retry:  retry.Policy{MaxTries: 3, Cooldown: 0.2, Exponent: 4},
//	})
//	pieces, err := catalog.ListPieces(ctx)
//
// # Validation
//
// The catalog is trusted all-or-nothing. Malformed JSON, a missing "data"
// array, or records without the fields the mirror needs fail the whole
// listing with a *CatalogFetchError. Identifiers are also checked to be
// single path segments, since they become directory names.
package earthclassmail
