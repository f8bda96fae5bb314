package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yuvalaufer/students-calander/internal/docstore"
	"github.com/yuvalaufer/students-calander/internal/repository"
)

var errHelp = errors.New("help provided")

// snapshotter reads archived revisions.
type snapshotter interface {
	Snapshot(ctx context.Context, name string, rev docstore.Revision) ([]byte, error)
}

type commandLine struct {
	store   docstore.Store
	archive snapshotter
	stdin   io.Reader
	stdout  io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.stdout, "Usage:")
	fmt.Fprintln(cli.stdout, "  get -name NAME                              - print a document and its revision")
	fmt.Fprintln(cli.stdout, "  put -name NAME [-file PATH] [-rev REV|-force] [-m MESSAGE]")
	fmt.Fprintln(cli.stdout, "                                              - write JSON from PATH or stdin; students, payments")
	fmt.Fprintln(cli.stdout, "                                                and credentials must have their stored shape")
	fmt.Fprintln(cli.stdout, "  snapshot -name NAME -rev REV                - print an archived revision")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	getCmd := flag.NewFlagSet("get", flag.ContinueOnError)
	getName := getCmd.String("name", "", "Document name: students, payments or credentials.")

	putCmd := flag.NewFlagSet("put", flag.ContinueOnError)
	putName := putCmd.String("name", "", "Document name.")
	putFile := putCmd.String("file", "", "JSON file to write; stdin when empty.")
	putRev := putCmd.String("rev", "", "Revision the write is conditioned on; empty creates the document.")
	putForce := putCmd.Bool("force", false, "Condition the write on whatever revision is current.")
	putMsg := putCmd.String("m", "", "Change description.")

	snapCmd := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	snapName := snapCmd.String("name", "", "Document name.")
	snapRev := snapCmd.String("rev", "", "Archived revision.")

	for _, fs := range []*flag.FlagSet{getCmd, putCmd, snapCmd} {
		fs.SetOutput(cli.stdout)
	}

	switch args[1] {
	case "get":
		if err := getCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *getName == "" {
			getCmd.Usage()
			return errHelp
		}
		return cli.get(ctx, *getName)
	case "put":
		if err := putCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *putName == "" || (*putForce && *putRev != "") {
			putCmd.Usage()
			return errHelp
		}
		return cli.put(ctx, *putName, *putFile, docstore.Revision(*putRev), *putForce, *putMsg)
	case "snapshot":
		if err := snapCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *snapName == "" || *snapRev == "" {
			snapCmd.Usage()
			return errHelp
		}
		if cli.archive == nil {
			return errors.New("snapshot needs MINIO_ENDPOINT to be configured")
		}
		body, err := cli.archive.Snapshot(ctx, *snapName, docstore.Revision(*snapRev))
		if err != nil {
			return err
		}
		_, err = cli.stdout.Write(body)
		return err
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) get(ctx context.Context, name string) error {
	doc, err := cli.store.Fetch(ctx, name)
	if err != nil {
		return err
	}
	if !doc.Exists() {
		return fmt.Errorf("%s does not exist", name)
	}
	fmt.Fprintf(cli.stdout, "# revision %s\n", doc.Revision)
	body, err := docstore.Encode(doc.Content)
	if err != nil {
		return err
	}
	_, err = cli.stdout.Write(body)
	return err
}

func (cli *commandLine) put(ctx context.Context, name, file string, rev docstore.Revision, force bool, msg string) error {
	var (
		body []byte
		err  error
	)
	if file == "" {
		body, err = io.ReadAll(cli.stdin)
	} else {
		body, err = os.ReadFile(file)
	}
	if err != nil {
		return err
	}
	if err := repository.Validate(name, body); err != nil {
		return err
	}
	if force {
		doc, err := cli.store.Fetch(ctx, name)
		if err != nil {
			return err
		}
		rev = doc.Revision
	}
	if strings.TrimSpace(msg) == "" {
		msg = "Update " + name + " from docctl"
	}
	newRev, err := cli.store.Put(ctx, name, body, rev, msg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout, "%s written at revision %s\n", name, newRev)
	return nil
}
