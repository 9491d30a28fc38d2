// Package payment implements the premium unlock flow.
//
// An unlock creates a purchase record, asks the PaymentGateway for an invoice
// link (Telegram Stars) and hands the link to the client. The client reports
// the invoice status once the payment UI closes; the bot confirms successful
// payments independently through MarkPaid. Entitlement is derived from paid
// purchases plus the configured admin ids.
package payment
