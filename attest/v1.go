package attest

import (
	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/pkc/typeddata"
)

// V1 is the single-party schema: the issuer signs a title and checksums.
// Its digest covers only (title, contents), so two owners cannot certify
// the same work. Kept for compatibility with certificates minted under it.
type V1 struct {
	Issuer   model.Identity
	Title    string
	Contents []string
}

var v1Types = typeddata.Types{
	"Issuer": issuerFields,
	"IPP": {
		{Name: "from", Type: "Issuer"},
		{Name: "title", Type: "string"},
		{Name: "contents", Type: "string[]"},
	},
}

var v1DigestTypes = typeddata.Types{
	"Certificate": {
		{Name: "title", Type: "string"},
		{Name: "contents", Type: "string[]"},
	},
}

func (a V1) Schema() Schema { return SchemaV1 }

func (a V1) Validate() error {
	if _, err := typeddata.FormatBytes32String(a.Issuer.Name); err != nil {
		return err
	}
	return validateContents(a.Contents)
}

func (a V1) TypedData(domain typeddata.Domain) (typeddata.TypedData, error) {
	if err := a.Validate(); err != nil {
		return typeddata.TypedData{}, err
	}
	from, err := identity(a.Issuer)
	if err != nil {
		return typeddata.TypedData{}, err
	}
	return typeddata.TypedData{
		Types:       v1Types,
		PrimaryType: "IPP",
		Domain:      domain,
		Message: typeddata.Message{
			"from":     from,
			"title":    a.Title,
			"contents": a.Contents,
		},
	}, nil
}

func (a V1) Digest() (model.Digest, error) {
	if err := validateContents(a.Contents); err != nil {
		return model.Digest{}, err
	}
	return digestOf(v1DigestTypes, typeddata.Message{
		"title":    a.Title,
		"contents": a.Contents,
	})
}
