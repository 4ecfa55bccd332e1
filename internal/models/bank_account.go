package models

// BankAccount is a bank transfer destination shown to registrants.
type BankAccount struct {
	ID            string `db:"id" json:"id"`
	BankName      string `db:"bank_name" json:"bankName"`
	AccountNumber string `db:"account_number" json:"accountNumber"`
	AccountName   string `db:"account_name" json:"accountName"`
	Active        bool   `db:"active" json:"-"`
}
