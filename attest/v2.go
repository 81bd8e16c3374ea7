package attest

import (
	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/pkc/typeddata"
)

// V2 is the two-party schema. The issuer attests on behalf of Owner, the
// title is a bytes32 and Creation (milliseconds since epoch) is signed.
// The digest binds owner, title, creation and contents.
type V2 struct {
	Issuer   model.Identity
	Owner    model.Identity
	Title    string
	Creation int64
	Contents []string
}

var v2Types = typeddata.Types{
	"Issuer": issuerFields,
	"IPP": {
		{Name: "from", Type: "Issuer"},
		{Name: "to", Type: "Issuer"},
		{Name: "title", Type: "bytes32"},
		{Name: "contents", Type: "string[]"},
		{Name: "creation", Type: "uint256"},
	},
}

var v2DigestTypes = typeddata.Types{
	"Certificate": {
		{Name: "owner", Type: "address"},
		{Name: "title", Type: "bytes32"},
		{Name: "creation", Type: "uint256"},
		{Name: "contents", Type: "string[]"},
	},
}

func (a V2) Schema() Schema { return SchemaV2 }

func (a V2) Validate() error {
	if _, err := typeddata.FormatBytes32String(a.Issuer.Name); err != nil {
		return err
	}
	if _, err := typeddata.FormatBytes32String(a.Owner.Name); err != nil {
		return err
	}
	if _, err := typeddata.FormatBytes32String(a.Title); err != nil {
		return err
	}
	if a.Creation < 0 {
		return ErrInvalidCreation
	}
	return validateContents(a.Contents)
}

func (a V2) TypedData(domain typeddata.Domain) (typeddata.TypedData, error) {
	if err := a.Validate(); err != nil {
		return typeddata.TypedData{}, err
	}
	from, err := identity(a.Issuer)
	if err != nil {
		return typeddata.TypedData{}, err
	}
	to, err := identity(a.Owner)
	if err != nil {
		return typeddata.TypedData{}, err
	}
	title, _ := typeddata.FormatBytes32String(a.Title)
	return typeddata.TypedData{
		Types:       v2Types,
		PrimaryType: "IPP",
		Domain:      domain,
		Message: typeddata.Message{
			"from":     from,
			"to":       to,
			"title":    title,
			"contents": a.Contents,
			"creation": a.Creation,
		},
	}, nil
}

func (a V2) Digest() (model.Digest, error) {
	if a.Creation < 0 {
		return model.Digest{}, ErrInvalidCreation
	}
	if err := validateContents(a.Contents); err != nil {
		return model.Digest{}, err
	}
	title, err := typeddata.FormatBytes32String(a.Title)
	if err != nil {
		return model.Digest{}, err
	}
	return digestOf(v2DigestTypes, typeddata.Message{
		"owner":    a.Owner.Wallet,
		"title":    title,
		"creation": a.Creation,
		"contents": a.Contents,
	})
}
