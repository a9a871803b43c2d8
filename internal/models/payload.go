package models

import "time"

// Hunter payloads. A hunter returns denormalized data for one entity;
// the store decides what becomes a new snapshot row. Nil Info or
// Stats means the hunter did not fetch that part.

// AccountData is the refresh/discovery payload for one account.
type AccountData struct {
	Identifier    string
	Info          *AccountInfoData
	Stats         *AccountStatsData
	Medias        []MediaData
	Subscriptions []AccountData
}

// AccountInfoData carries the descriptive fields tracked for accounts.
type AccountInfoData struct {
	Name string
	Bio  string
}

// AccountStatsData carries the numeric counters tracked for accounts.
type AccountStatsData struct {
	Medias        int64
	Views         int64
	Followers     int64
	Subscriptions int64
}

// MediaData is the refresh/discovery payload for one media.
type MediaData struct {
	Identifier string
	Created    time.Time
	Info       *MediaInfoData
	Stats      *MediaStatsData
	Comments   []CommentData
}

// MediaInfoData carries the descriptive fields tracked for medias.
type MediaInfoData struct {
	Title           string
	Caption         string
	DisableComments bool
}

// MediaStatsData carries the numeric counters tracked for medias.
type MediaStatsData struct {
	Comments int64
	Likes    int64
	Views    int64
}

// CommentData is one comment edge reported by a hunter. Author is
// resolved through account identity resolution before the edge is
// written.
type CommentData struct {
	Identifier string
	Author     AccountData
	Text       string
	Likes      int64
	Created    time.Time
}

// Differs reports whether the payload would change the latest stored
// info snapshot. A new info row is appended only when it does.
func (d *AccountInfoData) Differs(latest *AccountInfo) bool {
	if latest == nil {
		return true
	}
	return d.Name != latest.Name || d.Bio != latest.Bio
}

// Differs reports whether the payload would change the latest stored
// info snapshot.
func (d *MediaInfoData) Differs(latest *MediaInfo) bool {
	if latest == nil {
		return true
	}
	return d.Title != latest.Title || d.Caption != latest.Caption || d.DisableComments != latest.DisableComments
}
