// Package telegram binds the diagnostic service to Telegram.
//
// It validates the Mini-App launch parameters (initData) and exposes the
// caller as a ports.IdentityProvider, creates Stars invoice links through the
// Bot API and runs the bot-side half of the payment flow (pre-checkout
// approval and successful payment confirmation).
package telegram
