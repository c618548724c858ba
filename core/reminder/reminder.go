// Package reminder emails workspace members a digest of their open tasks that are due soon.
package reminder

import (
	"context"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/user"
	"github.com/openstud/openstud/core/workspace"
)

const templateName = "due_soon"

type (
	DueTask struct {
		Title                string
		ProjectName          string
		DueDate              time.Time
		CompletionPercentage int
	}

	Digest struct {
		Name  string
		Tasks []DueTask
	}

	Service struct {
		repo    workspace.Repository
		usrSvc  user.Service
		mailSvc core.EmailService
		logger  core.Logger
		window  time.Duration
		nowFunc func() time.Time // mockable
	}
)

func NewService(repo workspace.Repository, usrSvc user.Service, mailSvc core.EmailService, logger core.Logger, window time.Duration) *Service {
	return &Service{
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		logger:  logger,
		window:  window,
		nowFunc: time.Now,
	}
}

// Schedule registers Run on a new cron scheduler; the caller starts & stops it.
func (svc *Service) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		sent, err := svc.Run(context.Background())
		if err != nil {
			svc.logger.Error("reminder.Run", err)
			return
		}
		svc.logger.Info("due soon reminders sent", map[string]interface{}{"count": sent})
	})
	if err != nil {
		return nil, errors.Wrap(err, "scheduling reminders")
	}
	return c, nil
}

// Run sends one digest per active member having open tasks due within the window. It returns the number of emails sent.
func (svc *Service) Run(ctx context.Context) (int, error) {
	now := svc.nowFunc().UTC()
	open := false
	tasks, err := svc.repo.QueryTasks(ctx, workspace.TaskQuery{Completed: &open, DueFrom: now, DueTo: now.Add(svc.window)})
	if err != nil {
		return 0, errors.Wrap(err, "querying due tasks")
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	digests, err := svc.digests(ctx, tasks)
	if err != nil {
		return 0, err
	}

	userIDs := make([]string, 0, len(digests))
	for id := range digests {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	messages := make([]*core.EmailMessage, 0, len(digests))
	for _, id := range userIDs {
		usr, err := svc.usrSvc.GetByID(id)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				continue
			}
			return 0, errors.Wrap(err, "getting user")
		}
		if !usr.IsActive || usr.Email == "" {
			continue
		}
		dg := digests[id]
		dg.Name = usr.Name
		sort.SliceStable(dg.Tasks, func(i, j int) bool { return dg.Tasks[i].DueDate.Before(dg.Tasks[j].DueDate) })
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "Tasks due soon",
			TemplateName: templateName,
			TemplateData: dg,
		})
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	return len(messages), nil
}

// digests groups due tasks by the members of their workspace.
func (svc *Service) digests(ctx context.Context, tasks []workspace.Task) (map[string]*Digest, error) {
	projects := make(map[string]workspace.Project)
	members := make(map[string][]workspace.Member) // by workspace ID
	digests := make(map[string]*Digest)

	for _, t := range tasks {
		p, ok := projects[t.ProjectID]
		if !ok {
			var err error
			if p, err = svc.repo.GetProject(ctx, t.ProjectID); err != nil {
				return nil, errors.Wrap(err, "getting project")
			}
			projects[p.ID] = p
		}

		mbrs, ok := members[p.WorkspaceID]
		if !ok {
			var err error
			if mbrs, err = svc.repo.QueryMembers(ctx, p.WorkspaceID); err != nil {
				return nil, errors.Wrap(err, "querying members")
			}
			members[p.WorkspaceID] = mbrs
		}

		due := DueTask{Title: t.Title, ProjectName: p.Name, DueDate: *t.DueDate, CompletionPercentage: t.CompletionPercentage}
		for _, m := range mbrs {
			dg, ok := digests[m.UserID]
			if !ok {
				dg = &Digest{}
				digests[m.UserID] = dg
			}
			dg.Tasks = append(dg.Tasks, due)
		}
	}
	return digests, nil
}
