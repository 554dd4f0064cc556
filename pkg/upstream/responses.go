package upstream

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/gdelfava/domaintools/pkg/model"
)

// flexString tolerates the upstream's habit of returning ids and counters as
// either JSON numbers or strings depending on the installation.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) Int() int {
	n, _ := strconv.Atoi(string(f))
	return n
}

type envelope struct {
	Result  string `json:"result"`
	Message string `json:"message"`
}

type wireDomain struct {
	ID              flexString `json:"id"`
	DomainName      string     `json:"domainname"`
	Domain          string     `json:"domain"`
	Status          string     `json:"status"`
	Registrar       string     `json:"registrar"`
	ExpiryDate      string     `json:"expirydate"`
	RegDate         string     `json:"regdate"`
	RecurringAmount flexString `json:"recurringamount"`
	Currency        flexString `json:"currency"`
	Notes           string     `json:"notes"`
}

func (w wireDomain) normalize() model.Domain {
	name := w.DomainName
	if name == "" {
		name = w.Domain
	}
	return model.Domain{
		ExternalID:       string(w.ID),
		Name:             name,
		Status:           model.NormalizeStatus(w.Status),
		Registrar:        w.Registrar,
		ExpiryDate:       w.ExpiryDate,
		RegistrationDate: w.RegDate,
		Amount:           string(w.RecurringAmount),
		Currency:         string(w.Currency),
		Notes:            w.Notes,
	}
}

type domainsBody struct {
	Result  string `json:"result"`
	Domains struct {
		Domain []wireDomain `json:"domain"`
	} `json:"domains"`
	TotalResults flexString `json:"totalresults"`
}

// Client is one upstream account record, as returned by GetClients.
type Client struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

type wireClient struct {
	ID        flexString `json:"id"`
	FirstName string     `json:"firstname"`
	LastName  string     `json:"lastname"`
	Email     string     `json:"email"`
}

func (w wireClient) normalize() Client {
	return Client{
		ID:        string(w.ID),
		FirstName: w.FirstName,
		LastName:  w.LastName,
		Email:     w.Email,
	}
}

type clientsBody struct {
	Result  string `json:"result"`
	Clients struct {
		Client []wireClient `json:"client"`
	} `json:"clients"`
}

type nameserversBody struct {
	Result string `json:"result"`
	NS1    string `json:"ns1"`
	NS2    string `json:"ns2"`
	NS3    string `json:"ns3"`
	NS4    string `json:"ns4"`
	NS5    string `json:"ns5"`
}

// Stats is the subset of GetStats the dashboard displays.
type Stats struct {
	Result           string     `json:"result"`
	IncomeToday      flexString `json:"income_today"`
	IncomeThisMonth  flexString `json:"income_thismonth"`
	IncomeThisYear   flexString `json:"income_thisyear"`
	IncomeAllTime    flexString `json:"income_alltime"`
	OrdersTodayTotal flexString `json:"orders_today_total"`
}
