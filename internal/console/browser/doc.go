// Package browser implements console.Session with chromedp.
//
// Element lookup is expressed as ranked Strategies: ordered lists of
// locators tried one after another until one matches. Layout-specific
// selectors live only here; the operation workflow in package console never
// sees a selector.
//
// The authenticated state is a JSON cookie list stored at
// Config.StorageStatePath. Open restores it when present; SaveState writes it
// back (used by the interactive login command).
package browser
