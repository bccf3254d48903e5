// Package scraper drives a full mirror of one SmugMug account.
//
// A run authenticates the session, lists the selected albums and then
// processes the albums one at a time: the album directory is prepared, the
// album's media are listed, and every entry goes through a download worker
// pool. Entries whose file already exists are skipped without any network
// call, so running twice against an unchanged account downloads nothing
// the second time.
//
// Failures are scoped. An account whose album list cannot be fetched ends
// the run with an error; a failed album listing, resolution or transfer is
// recorded in the Summary and the run moves on.
//
// Usage:
//
//	s, err := scraper.NewFromConfig(cfg, log)
//	if err != nil {
//	    return err
//	}
//	s.SetObserver(ui.NewProgressDisplay(os.Stdout, false))
//
//	summary, err := s.Run(ctx, scraper.Options{
//	    Username:    "jdoe",
//	    Credentials: smugmug.Credentials{Password: pw},
//	    Selector:    smugmug.Selector{Folder: "/Travel"},
//	})
//
// Cancelling ctx stops new downloads from starting; downloads already in
// flight run to completion.
package scraper
