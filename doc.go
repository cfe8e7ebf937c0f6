// Package nicotools is a client for the niconico video site.
//
// It downloads videos, comment threads and thumbnails, and manages the
// account's mylists.
//
// Overview
//
// The work is split between two packages:
//
//   - nico: ID resolution, login, descriptors, and the video, comment and
//     thumbnail fetchers
//   - mylist: resolving lists by name or ID, listing their items, and adding,
//     copying, moving and deleting entries
//
// Quick Start
//
// Log in and download a video with its comments:
//
//	ctx := context.Background()
//	sess, err := nico.Login(ctx, nico.LoginOptions{
//		Mail:      "me@example.com",
//		Password:  "secret",
//		HTTP:      http.DefaultConfig(),
//		Endpoints: nico.DefaultEndpoints(),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sess.Close()
//
//	db, err := nico.NewInfoFetcher(sess.Client, sess.Endpoints, zerolog.Nop()).
//		Fetch(ctx, nico.Resolve([]string{"sm9"}))
//	if err != nil {
//		log.Fatal(err)
//	}
//	res, err := nico.NewVideoFetcher(sess, nico.FetchOptions{}).Run(ctx, db, ".")
//
// Add content to a mylist (the session must be created with NeedToken):
//
//	eng, err := mylist.New(ctx, sess, mylist.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	rep, err := eng.Add(ctx, mylist.Ref{Target: "Favourites"}, "sm9", "sm1097445")
//
// Configuration
//
// The command loads settings from several sources:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables
//  3. Config file (nicotools.json or ~/.config/nicotools/nicotools.json)
//  4. Default values (lowest priority)
//
// Environment variables:
//
//   - NICOTOOLS_MAIL, NICOTOOLS_PASSWORD: Account credentials
//   - NICOTOOLS_COOKIE_FILE: Keep the session between runs
//   - NICOTOOLS_NETSCAPE_COOKIES: Browser-exported cookies.txt
//   - NICOTOOLS_DEST: Default download directory
//   - NICOTOOLS_LOG_LEVEL: debug, info, warn, error or quiet
//   - NICOTOOLS_REQUEST_TIMEOUT, NICOTOOLS_CONNECT_TIMEOUT, NICOTOOLS_READ_TIMEOUT
//   - NICOTOOLS_MAX_RETRIES, NICOTOOLS_INITIAL_BACKOFF, NICOTOOLS_MAX_BACKOFF
//   - NICOTOOLS_VIDEO_INTERVAL, NICOTOOLS_COMMENT_INTERVAL, NICOTOOLS_ADD_INTERVAL
//   - NICOTOOLS_ACCESS_LOCK_WAIT, NICOTOOLS_ACCESS_LOCK_RETRIES
//
// Error Handling
//
// Checking for sentinel errors:
//
//	if errors.Is(err, nicotools.ErrBadArgument) {
//		fmt.Println("check the arguments")
//	}
//
// Extracting wrapped error details:
//
//	var abort *nicotools.AbortError
//	if errors.As(err, &abort) {
//		fmt.Printf("%s stopped with %s; not processed: %v\n", abort.Op, abort.Code, abort.Remaining)
//	}
package nicotools
