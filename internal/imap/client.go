// Package imap implements the IMAP4rev1 wire layer (RFC 3501) plus the
// UIDPLUS, MOVE, IDLE and SASL-IR/AUTH=XOAUTH2 extensions the sync engine
// and tool registry depend on, on top of emersion/go-imap/v2.
package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
	"github.com/aerioncore/mailcore/internal/xoauth2"
)

// deadlineConn enforces read/write deadlines on every operation, since
// go-imap/v2 does not apply timeouts to the underlying socket itself.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

const (
	connectTimeout = 30 * time.Second
	readTimeout    = 3 * time.Minute
	writeTimeout   = 30 * time.Second
)

// Session is an authenticated IMAP connection for one Account, implementing
// out.ImapSession.
type Session struct {
	client *imapclient.Client
	caps   imap.CapSet
	log    zerolog.Logger

	selected string // currently SELECTed mailbox, "" if none
}

var _ out.ImapSession = (*Session)(nil)

// Factory opens Sessions for an Account, implementing out.ImapSessionFactory.
type Factory struct {
	log zerolog.Logger
}

var _ out.ImapSessionFactory = (*Factory)(nil)

// NewFactory builds a session factory logging under the given component.
func NewFactory(log zerolog.Logger) *Factory {
	return &Factory{log: log.With().Str("component", "imap").Logger()}
}

func (f *Factory) Open(ctx context.Context, acct *domain.Account) (out.ImapSession, error) {
	addr := fmt.Sprintf("%s:%d", acct.IMAPHost, acct.IMAPPort)
	dialer := &net.Dialer{Timeout: connectTimeout}
	options := &imapclient.Options{}

	var client *imapclient.Client
	if acct.IMAPUseTLS {
		rawConn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: acct.IMAPHost})
		if err != nil {
			return nil, fmt.Errorf("imap: dial tls: %w", err)
		}
		wrapped := &deadlineConn{Conn: rawConn, readTimeout: readTimeout, writeTimeout: writeTimeout}
		client = imapclient.New(wrapped, options)
	} else {
		var err error
		client, err = imapclient.DialStartTLS(addr, options)
		if err != nil {
			return nil, fmt.Errorf("imap: dial starttls: %w", err)
		}
	}

	if err := client.WaitGreeting(); err != nil {
		client.Close()
		return nil, fmt.Errorf("imap: greeting: %w", err)
	}

	s := &Session{client: client, caps: client.Caps(), log: f.log.With().Str("account", acct.EmailAddr).Logger()}

	if err := s.authenticate(ctx, acct); err != nil {
		client.Close()
		return nil, err
	}
	s.caps = client.Caps()
	return s, nil
}

func (s *Session) authenticate(ctx context.Context, acct *domain.Account) error {
	if acct.UsesOAuth() {
		if acct.OAuthAccessToken == "" {
			return fmt.Errorf("imap: oauth account has no access token")
		}
		client := xoauth2.NewClient(acct.IMAPUser, acct.OAuthAccessToken)
		if err := s.client.Authenticate(client); err != nil {
			return fmt.Errorf("imap: xoauth2 authenticate: %w", err)
		}
		return nil
	}

	if s.caps.Has(imap.CapLoginDisabled) {
		plain := sasl.NewPlainClient("", acct.IMAPUser, acct.IMAPPass)
		if err := s.client.Authenticate(plain); err != nil {
			return fmt.Errorf("imap: sasl plain authenticate: %w", err)
		}
		return nil
	}

	if err := s.client.Login(acct.IMAPUser, acct.IMAPPass).Wait(); err != nil {
		return fmt.Errorf("imap: login: %w", err)
	}
	return nil
}

func (s *Session) ensureSelected(ctx context.Context, folder string) error {
	if s.selected == folder {
		return nil
	}
	if _, err := s.client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("imap: select %q: %w", folder, err)
	}
	s.selected = folder
	return nil
}

func (s *Session) ListFolders(ctx context.Context) ([]out.RemoteFolder, error) {
	listCmd := s.client.List("", "*", nil)
	var folders []out.RemoteFolder
	for {
		mbox := listCmd.Next()
		if mbox == nil {
			break
		}
		attrs := make([]string, len(mbox.Attrs))
		for i, a := range mbox.Attrs {
			attrs[i] = string(a)
		}
		folders = append(folders, out.RemoteFolder{
			Name:      mbox.Mailbox,
			Delimiter: string(mbox.Delim),
			Attrs:     attrs,
		})
	}
	if err := listCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap: list: %w", err)
	}
	return folders, nil
}

func (s *Session) Status(ctx context.Context, folder string) (*out.MailboxStatus, error) {
	data, err := s.client.Status(folder, &imap.StatusOptions{
		NumMessages: true,
		NumUnseen:   true,
		UIDNext:     true,
		UIDValidity: true,
	}).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap: status %q: %w", folder, err)
	}
	st := &out.MailboxStatus{UIDValidity: data.UIDValidity, UIDNext: uint32(data.UIDNext)}
	if data.NumMessages != nil {
		st.Messages = int(*data.NumMessages)
	}
	if data.NumUnseen != nil {
		st.Unseen = int(*data.NumUnseen)
	}
	return st, nil
}

func fetchOptions(withBody bool) *imap.FetchOptions {
	opts := &imap.FetchOptions{
		UID:           true,
		Flags:         true,
		Envelope:      true,
		InternalDate:  true,
		RFC822Size:    true,
		BodyStructure: &imap.FetchItemBodyStructure{Extended: true},
	}
	if withBody {
		opts.BodySection = []*imap.FetchItemBodySection{{Peek: true}}
	}
	return opts
}

func (s *Session) FetchUIDRange(ctx context.Context, folder string, fromUID uint32, withBody bool) ([]out.FetchedMessage, error) {
	if err := s.ensureSelected(ctx, folder); err != nil {
		return nil, err
	}
	uidSet := imap.UIDSet{}
	uidSet.AddRange(imap.UID(fromUID), 0) // 0 = "*", open-ended range

	msgs, err := s.client.Fetch(uidSet, fetchOptions(withBody)).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap: fetch uid range: %w", err)
	}
	return parseFetchBuffers(msgs), nil
}

func (s *Session) FetchByUID(ctx context.Context, folder string, uids []uint32, withBody bool) ([]out.FetchedMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	if err := s.ensureSelected(ctx, folder); err != nil {
		return nil, err
	}
	uidSet := imap.UIDSet{}
	for _, u := range uids {
		uidSet.AddNum(imap.UID(u))
	}
	msgs, err := s.client.Fetch(uidSet, fetchOptions(withBody)).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap: fetch by uid: %w", err)
	}
	return parseFetchBuffers(msgs), nil
}

func parseFetchBuffers(msgs []*imapclient.FetchMessageBuffer) []out.FetchedMessage {
	out_ := make([]out.FetchedMessage, 0, len(msgs))
	for _, m := range msgs {
		out_ = append(out_, parseFetchBuffer(m))
	}
	return out_
}

func parseFetchBuffer(m *imapclient.FetchMessageBuffer) out.FetchedMessage {
	fm := out.FetchedMessage{
		UID:          uint32(m.UID),
		Flags:        make([]string, 0, len(m.Flags)),
		InternalDate: m.InternalDate.Format(time.RFC3339),
		Size:         m.RFC822Size,
	}
	for _, f := range m.Flags {
		fm.Flags = append(fm.Flags, string(f))
	}
	if env := m.Envelope; env != nil {
		fm.Subject = env.Subject
		fm.MessageID = env.MessageID
		fm.Date = env.Date.Format(time.RFC3339)
		if len(env.InReplyTo) > 0 {
			fm.InReplyTo = env.InReplyTo[0]
			fm.References = strings.Join(env.InReplyTo, " ")
		}
		if len(env.From) > 0 {
			fm.FromAddress = fmt.Sprintf("%s@%s", env.From[0].Mailbox, env.From[0].Host)
			fm.FromName = env.From[0].Name
		}
		for _, a := range env.To {
			fm.To = append(fm.To, fmt.Sprintf("%s@%s", a.Mailbox, a.Host))
		}
		for _, a := range env.Cc {
			fm.CC = append(fm.CC, fmt.Sprintf("%s@%s", a.Mailbox, a.Host))
		}
	}
	if m.BodyStructure != nil {
		fm.Attachments = collectAttachmentStubs(m.BodyStructure, "")
	}
	if len(m.BodySection) > 0 && m.BodySection[0].Bytes != nil {
		fm.Headers, fm.BodyText, fm.BodyHTML, fm.Attachments = parseBodySection(m.BodySection[0].Bytes)
	}
	return fm
}

// collectAttachmentStubs walks BODYSTRUCTURE to list attachment filenames
// and content types without downloading bytes, for has_attachments checks.
func collectAttachmentStubs(bs imap.BodyStructure, partID string) []out.FetchedAttachment {
	switch b := bs.(type) {
	case *imap.BodyStructureSinglePart:
		if filename := attachmentFilename(b); filename != "" {
			return []out.FetchedAttachment{{Filename: filename, ContentType: b.Type + "/" + b.Subtype}}
		}
		return nil
	case *imap.BodyStructureMultiPart:
		var out_ []out.FetchedAttachment
		for _, child := range b.Children {
			out_ = append(out_, collectAttachmentStubs(child, partID)...)
		}
		return out_
	}
	return nil
}

func attachmentFilename(b *imap.BodyStructureSinglePart) string {
	if b.Disposition != nil {
		if name, ok := b.Disposition.Params["filename"]; ok {
			return name
		}
	}
	if name, ok := b.Params["name"]; ok {
		return name
	}
	return ""
}

// parseBodySection parses a full RFC 5322 byte stream with go-message/mail
// into plain/html bodies and inline/attachment parts.
func parseBodySection(raw []byte) (headers, text, html string, attachments []out.FetchedAttachment) {
	mr, err := mail.CreateReader(strings.NewReader(string(raw)))
	if err != nil {
		return "", string(raw), "", nil
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			data, _ := readAll(part.Body)
			switch {
			case strings.HasPrefix(ct, "text/html"):
				html = string(data)
			case strings.HasPrefix(ct, "text/plain"):
				text = string(data)
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			ct, _, _ := h.ContentType()
			data, _ := readAll(part.Body)
			attachments = append(attachments, out.FetchedAttachment{
				Filename:    filename,
				ContentType: ct,
				Data:        data,
			})
		}
	}
	return "", text, html, attachments
}

func readAll(r interface{ Read([]byte) (int, error) }) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err.Error() == "EOF" {
				return buf, nil
			}
			return buf, err
		}
	}
}

func (s *Session) Idle(ctx context.Context, folder string) error {
	if err := s.ensureSelected(ctx, folder); err != nil {
		return err
	}
	if !s.caps.Has(imap.CapIdle) {
		return fmt.Errorf("imap: server does not support IDLE")
	}
	cmd, err := s.client.Idle()
	if err != nil {
		return fmt.Errorf("imap: idle start: %w", err)
	}
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		done <- cmd.Close()
	}()
	select {
	case <-ctx.Done():
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *Session) StoreFlags(ctx context.Context, folder string, uid uint32, add, remove []string) error {
	if err := s.ensureSelected(ctx, folder); err != nil {
		return err
	}
	uidSet := imap.UIDSet{}
	uidSet.AddNum(imap.UID(uid))

	if len(add) > 0 {
		flags := make([]imap.Flag, len(add))
		for i, f := range add {
			flags[i] = imap.Flag(f)
		}
		cmd := s.client.Store(uidSet, &imap.StoreFlags{Op: imap.StoreFlagsAdd, Flags: flags, Silent: true}, nil)
		if err := cmd.Close(); err != nil {
			return fmt.Errorf("imap: store add flags: %w", err)
		}
	}
	if len(remove) > 0 {
		flags := make([]imap.Flag, len(remove))
		for i, f := range remove {
			flags[i] = imap.Flag(f)
		}
		cmd := s.client.Store(uidSet, &imap.StoreFlags{Op: imap.StoreFlagsDel, Flags: flags, Silent: true}, nil)
		if err := cmd.Close(); err != nil {
			return fmt.Errorf("imap: store remove flags: %w", err)
		}
	}
	return nil
}

func (s *Session) Move(ctx context.Context, srcFolder, dstFolder string, uid uint32) (uint32, error) {
	if err := s.ensureSelected(ctx, srcFolder); err != nil {
		return 0, err
	}
	uidSet := imap.UIDSet{}
	uidSet.AddNum(imap.UID(uid))

	data, err := s.client.Move(uidSet, dstFolder).Wait()
	if err != nil {
		return 0, fmt.Errorf("imap: move: %w", err)
	}
	if data != nil {
		if r, ok := firstUID(data.UIDDest); ok {
			return r, nil
		}
	}
	return 0, nil
}

func (s *Session) BatchMove(ctx context.Context, srcFolder, dstFolder string, uids []uint32) (map[uint32]uint32, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	if err := s.ensureSelected(ctx, srcFolder); err != nil {
		return nil, err
	}
	uidSet := imap.UIDSet{}
	for _, u := range uids {
		uidSet.AddNum(imap.UID(u))
	}
	if _, err := s.client.Move(uidSet, dstFolder).Wait(); err != nil {
		return nil, fmt.Errorf("imap: batch move: %w", err)
	}
	// UIDPLUS destination mapping is best-effort; callers re-sync dstFolder
	// to learn the new UIDs rather than relying on server-reported ranges.
	return map[uint32]uint32{}, nil
}

// firstUID extracts the first numeric UID from a UIDSet, when the server
// reports UIDPLUS destination ranges on MOVE/COPY.
func firstUID(set imap.UIDSet) (uint32, bool) {
	nums := set.Nums()
	if len(nums) == 0 {
		return 0, false
	}
	return uint32(nums[0]), true
}

func (s *Session) Expunge(ctx context.Context, folder string) error {
	if err := s.ensureSelected(ctx, folder); err != nil {
		return err
	}
	if s.caps.Has(imap.CapUIDPlus) {
		if err := s.client.Expunge().Close(); err != nil {
			return fmt.Errorf("imap: expunge: %w", err)
		}
		return nil
	}
	if err := s.client.Expunge().Close(); err != nil {
		return fmt.Errorf("imap: expunge: %w", err)
	}
	return nil
}

func (s *Session) Append(ctx context.Context, folder string, raw []byte, flags []string) (uint32, error) {
	imapFlags := make([]imap.Flag, len(flags))
	for i, f := range flags {
		imapFlags[i] = imap.Flag(f)
	}
	appendCmd := s.client.Append(folder, int64(len(raw)), &imap.AppendOptions{Flags: imapFlags})
	if _, err := appendCmd.Write(raw); err != nil {
		return 0, fmt.Errorf("imap: append write: %w", err)
	}
	if err := appendCmd.Close(); err != nil {
		return 0, fmt.Errorf("imap: append close: %w", err)
	}
	data, err := appendCmd.Wait()
	if err != nil {
		return 0, fmt.Errorf("imap: append: %w", err)
	}
	return uint32(data.UID), nil
}

func (s *Session) Close(ctx context.Context) error {
	if err := s.client.Logout().Wait(); err != nil {
		s.log.Warn().Err(err).Msg("logout failed, closing anyway")
	}
	return s.client.Close()
}
