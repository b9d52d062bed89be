package trello

import "time"

// Wire types for the Trello REST API. Field names follow Trello's JSON.

type trelloBoard struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Desc   string `json:"desc"`
	Closed bool   `json:"closed"`
	URL    string `json:"url"`
}

type trelloList struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	IDBoard string  `json:"idBoard"`
	Pos     float64 `json:"pos"`
	Closed  bool    `json:"closed"`
}

type trelloCard struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Desc     string     `json:"desc"`
	IDBoard  string     `json:"idBoard"`
	IDList   string     `json:"idList"`
	Pos      float64    `json:"pos"`
	Due      *time.Time `json:"due"`
	Closed   bool       `json:"closed"`
	IDLabels []string   `json:"idLabels"`
}

// trelloAction carries board activity; only commentCard actions are requested
type trelloAction struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Date time.Time `json:"date"`
	Data struct {
		Text string `json:"text"`
		Card struct {
			ID string `json:"id"`
		} `json:"card"`
	} `json:"data"`
	MemberCreator struct {
		ID string `json:"id"`
	} `json:"memberCreator"`
}

type trelloAttachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Bytes    int64  `json:"bytes"`
	IsUpload bool   `json:"isUpload"`
}

type trelloLabel struct {
	ID      string `json:"id"`
	IDBoard string `json:"idBoard"`
	Name    string `json:"name"`
	Color   string `json:"color"`
}

type trelloCheckItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	State string  `json:"state"` // "complete" or "incomplete"
	Pos   float64 `json:"pos"`
}

type trelloChecklist struct {
	ID         string            `json:"id"`
	IDCard     string            `json:"idCard"`
	Name       string            `json:"name"`
	CheckItems []trelloCheckItem `json:"checkItems"`
}
