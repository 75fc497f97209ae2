package models

import "time"

// Checksum is a single digest of the decrypted content.
type Checksum struct {
	Checksum string `json:"checksum"`
	Type     string `json:"type"`
}

// AccessURL carries a pre-signed URL.
type AccessURL struct {
	URL string `json:"url"`
}

// AccessMethod describes how to fetch the object bytes.
type AccessMethod struct {
	AccessURL AccessURL `json:"access_url"`
	Type      string    `json:"type"`
}

// DrsObject is the metadata document returned for a resident file.
type DrsObject struct {
	ID            string         `json:"id"`
	SelfURI       string         `json:"self_uri"`
	Size          int64          `json:"size"`
	CreatedTime   time.Time      `json:"created_time"`
	Checksums     []Checksum     `json:"checksums"`
	AccessMethods []AccessMethod `json:"access_methods"`
}

// NewDrsObject builds the metadata document for file with an S3 access
// method pointing at accessURL.
func NewDrsObject(file *RegisteredFile, selfURI, accessURL string) *DrsObject {
	return &DrsObject{
		ID:          file.FileID,
		SelfURI:     selfURI,
		Size:        file.DecryptedSize,
		CreatedTime: file.CreationDate.UTC(),
		Checksums: []Checksum{
			{Checksum: file.DecryptedSHA256, Type: "sha-256"},
		},
		AccessMethods: []AccessMethod{
			{AccessURL: AccessURL{URL: accessURL}, Type: "s3"},
		},
	}
}
