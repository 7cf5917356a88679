package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vgitarchive/vgitarchive/backend/internal/vfile"
	"github.com/vgitarchive/vgitarchive/backend/pkg/archivecodec"
)

func openSession(archive string, limit int64) *vfile.Session {
	s, err := vfile.New(archive, vfile.Options{
		Codec: archivecodec.ZipCodec{BandwidthLimit: limit},
	})
	mustExit(err)
	return s
}

func cmdCreate(ctx context.Context, archive string, limit int64) {
	s := openSession(archive, limit)
	mustExit(s.Create(ctx))
	lg.Infow("Created archive.", "archive", archive)
}

func cmdCommit(ctx context.Context, archive, message string, limit int64) {
	s := openSession(archive, limit)
	mustExit(s.Open(ctx, true))
	defer s.Close(ctx)
	mustExit(s.Commit(ctx, message))
	lg.Infow("Committed.", "archive", archive)
}

func cmdCheckout(ctx context.Context, archive string, limit int64, args map[string]interface{}) {
	s := openSession(archive, limit)
	mustExit(s.Open(ctx, false))
	defer s.Close(ctx)

	switch {
	case args["--first"].(bool):
		mustExit(s.CheckoutFirstVersion(ctx))
	case args["--last"].(bool):
		mustExit(s.CheckoutLatestVersion(ctx))
	case args["--next"].(bool):
		mustExit(s.CheckoutNextVersion(ctx))
	case args["--previous"].(bool):
		mustExit(s.CheckoutPreviousVersion(ctx))
	default:
		i, err := strconv.Atoi(args["--version"].(string))
		mustExit(err)
		mustExit(s.CheckoutVersion(ctx, i))
	}
	lg.Infow("Checked out.", "archive", archive)
}

func cmdLog(ctx context.Context, archive string) {
	s := openSession(archive, 0)
	mustExit(s.Open(ctx, false))
	defer s.Close(ctx)

	versions, err := s.Versions()
	mustExit(err)
	for i, c := range versions {
		if i == 0 {
			continue // private root commit, never shown
		}
		fmt.Printf("%d\t%s\t%s\n", i, c.ID, c.Message)
	}
}

func cmdStatus(ctx context.Context, archive string) {
	s := openSession(archive, 0)
	mustExit(s.Open(ctx, false))
	defer s.Close(ctx)

	lines, err := s.HumanStatus(ctx)
	mustExit(err)
	for _, l := range lines {
		fmt.Println(l)
	}
}

func cmdCleanup(ctx context.Context, archive string) {
	s := openSession(archive, 0)
	mustExit(s.Recover(ctx))
	mustExit(s.Cleanup(ctx))
	lg.Infow("Cleaned up.", "archive", archive)
}

func cmdIsValid(ctx context.Context, archive string) {
	ok, err := vfile.IsValidArchive(ctx, archive, archivecodec.ZipCodec{})
	mustExit(err)
	if ok {
		fmt.Println("valid")
	} else {
		fmt.Println("invalid")
	}
}
