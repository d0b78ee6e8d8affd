package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/paeinovis/RETRHO-administrative/config"
)

// Message 已渲染的通知
type Message struct {
	To      string
	Subject string
	Body    string
}

const closing = `<br/><br/>Thank you for using the {{.Program}} interface.`

var templates = template.Must(template.New("notify").Parse(`
{{define "link"}}{{if .}}<a href="{{.}}">here</a>{{else}}here{{end}}{{end}}

{{define "submission_success"}}Dear {{.Name}},<br/><br/>Your target submission has successfully been processed. Your reference code for this submission is <b>{{.Code}}</b>.<br/><br/>If there was an error in your submission, please reply to this email to update it (see the list of targets at the end of this email). If you would like to submit another spreadsheet of targets, please submit another form <b>{{template "link" .Links.SubmitForm}}</b>.` + closing + `<br/><br/><br/><b>List of targets:</b><br/>{{range $i, $n := .Targets}}{{if $i}}<br/>{{end}}{{$n}}{{end}}{{end}}

{{define "submission_failure"}}Dear {{.Name}},<br/><br/>Your target submission has <b>NOT</b> been successfully processed.<br/><br/>
{{- if eq .Kind "ColumnMismatch"}}There was a discrepancy detected between the template sheet and the submitted sheet in the columns {{.Detail}} which is preventing the program from parsing the targets. Please make sure to use the latest template sheet found <b>{{template "link" .Links.TemplateSheet}}</b> to ensure your submission can be processed correctly.
{{- else if eq .Kind "WindowMismatch"}}There was a discrepancy detected between the observing windows for the targets {{.Detail}} which is preventing the program from parsing the targets. Please make sure that all observing windows have an opening date prior to their close date and that the close date has not already passed.<br/><br/>If you would like to resubmit your targets, the latest template sheet can be found <b>{{template "link" .Links.TemplateSheet}}</b>.
{{- else}}For troubleshooting purposes, the error reported while storing your targets was: {{.Detail}}.
{{- end}}<br/><br/>If you believe this is an internal error or you cannot successfully submit your target list, please reply to this email so we may assist you and rectify the issue. Otherwise, you may retry submission through the form <b>{{template "link" .Links.SubmitForm}}</b>.` + closing + `{{end}}

{{define "submission_queued"}}Dear {{.Name}},<br/><br/>Your target submission has been received but could not be processed right away. It has been kept in the queue and will be processed shortly; you will receive a second email with your reference code or any problems found in your spreadsheet.<br/><br/>There is no need to submit the form again.` + closing + `{{end}}

{{define "signup_success"}}Dear {{.Name}},<br/><br/>Your request to be added to the observing schedule for the date <b>{{.Date}}</b> has successfully been processed.<br/><br/>Please check the observing signup sheet <b>{{template "link" .Links.SignupSheet}}</b> to ensure the information you entered was correct. If there was an error in your submission, please reply to this email to update it.<br/><br/>Please remember to complete the followup form to keep track of your observing history.<br/><b>The followup form can be found {{template "link" .Links.FollowupForm}}</b>.` + closing + `{{end}}

{{define "signup_failure"}}Dear {{.Name}},<br/><br/>Your request to be added to the observing schedule for the date <b>{{.Date}}</b> has <b>NOT</b> been successfully processed.
{{- if eq .Kind "PastDateRejected"}} The requested night has already passed.{{else if eq .Kind "DuplicateSignup"}} You are already signed up for this night.{{else if eq .Kind "CapacityExceeded"}} This night has no open seat for your role.{{end}} Please retry submission through the signup form.<br/><br/><b>The signup form can be found {{template "link" .Links.SignupForm}}</b>.<br/><br/>Note that only {{.MaxJunior}} observers can observe a night, so if there are {{.MaxJunior}} people already signed up, you will not be able to observe on that night. Alternatively, you may already be signed up. Please check the signup sheet {{template "link" .Links.SignupSheet}} before trying again.` + closing + `{{end}}
`))

// Renderer 生成各类结果的 HTML 通知
type Renderer struct {
	links     config.LinksConfig
	maxJunior int
}

// NewRenderer 创建渲染器
func NewRenderer(links config.LinksConfig, maxJunior int) *Renderer {
	return &Renderer{links: links, maxJunior: maxJunior}
}

type view struct {
	Program   string
	Links     config.LinksConfig
	Name      string
	Code      string
	Targets   []string
	Kind      string
	Detail    string
	Date      string
	MaxJunior int
}

func (r *Renderer) view() view {
	program := r.links.ProgramName
	if program == "" {
		program = "RETRHO"
	}
	return view{Program: program, Links: r.links, MaxJunior: r.maxJunior}
}

func (r *Renderer) render(name string, v view) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("渲染通知模板 %s 失败: %w", name, err)
	}
	return buf.String(), nil
}

// SubmissionSuccess 目标提交成功：参考编号与目标列表
func (r *Renderer) SubmissionSuccess(to, name, code string, targets []string) (Message, error) {
	v := r.view()
	v.Name, v.Code, v.Targets = name, code, targets
	body, err := r.render("submission_success", v)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: fmt.Sprintf("[SUCCESS] - %s Target Submission", v.Program), Body: body}, nil
}

// SubmissionFailure 目标提交失败，kind 为失败分类，detail 为拼接后的原因
func (r *Renderer) SubmissionFailure(to, name, kind, detail string) (Message, error) {
	v := r.view()
	v.Name, v.Kind, v.Detail = name, kind, detail
	body, err := r.render("submission_failure", v)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: fmt.Sprintf("[ERROR] - %s Target Submission Failure", v.Program), Body: body}, nil
}

// SubmissionQueued 提交已收下但暂未整合，等待重新处理
func (r *Renderer) SubmissionQueued(to, name string) (Message, error) {
	v := r.view()
	v.Name = name
	body, err := r.render("submission_queued", v)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: fmt.Sprintf("[RECEIVED] - %s Target Submission Pending", v.Program), Body: body}, nil
}

// SignupSuccess 报名成功
func (r *Renderer) SignupSuccess(to, name, date string) (Message, error) {
	v := r.view()
	v.Name, v.Date = name, date
	body, err := r.render("signup_success", v)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: fmt.Sprintf("[SUCCESS] - %s Observing Schedule Updated", v.Program), Body: body}, nil
}

// SignupFailure 报名被拒
func (r *Renderer) SignupFailure(to, name, date, kind string) (Message, error) {
	v := r.view()
	v.Name, v.Date, v.Kind = name, date, kind
	body, err := r.render("signup_failure", v)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: fmt.Sprintf("[ERROR] - %s Observing Schedule Not Updated", v.Program), Body: body}, nil
}
