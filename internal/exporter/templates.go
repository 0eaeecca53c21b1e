package exporter

import "html/template"

// templates holds the page shell and every content fragment. Fragments are
// executed on their own and handed to "document" as template.HTML.
var templates = template.Must(template.New("exporter").Parse(`
{{define "document"}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>{{.Styles}}</style>
</head>
<body class="{{.BodyClass}}">
    <div class="header">
        <h1>{{.Title}}</h1>
        <p>Exported from BJJ Social Platform</p>
    </div>

    {{.Content}}

    <div class="export-date">
        <p>Exported on {{.ExportedAt}}</p>
    </div>
</body>
</html>{{end}}

{{define "profileCard"}}
      <div class="profile-card">
        <div class="profile-header">
          <div class="profile-avatar">
            {{if .ProfileImageURL}}<img src="{{.ProfileImageURL}}" alt="{{.FirstName}} {{.LastName}}" style="width: 100%; height: 100%; object-fit: cover; border-radius: 50%;">{{else}}{{.Initials}}{{end}}
          </div>
          <div class="profile-info">
            <h2>{{.FirstName}} {{.LastName}}</h2>
            <span class="belt-badge {{.BeltClass}}">{{.Belt}} Belt {{if .Stripes}}• {{.Stripes}} Stripes{{end}}</span>
            <p style="margin: 4px 0; color: #6b7280;">{{.Location}}</p>
          </div>
        </div>

        <div class="stats-grid">
          <div class="stat-item">
            <span class="stat-value">{{.YearsTraining}}</span>
            <span class="stat-label">Years Training</span>
          </div>
          <div class="stat-item">
            <span class="stat-value">{{.Competitions}}</span>
            <span class="stat-label">Competitions</span>
          </div>
          <div class="stat-item">
            <span class="stat-value">{{.Wins}}</span>
            <span class="stat-label">Wins</span>
          </div>
          <div class="stat-item">
            <span class="stat-value">{{.Losses}}</span>
            <span class="stat-label">Losses</span>
          </div>
          <div class="stat-item">
            <span class="stat-value">{{.Followers}}</span>
            <span class="stat-label">Followers</span>
          </div>
          <div class="stat-item">
            <span class="stat-value">{{.Posts}}</span>
            <span class="stat-label">Posts</span>
          </div>
        </div>
        {{if .Bio}}
          <div class="bio-section">
            <h3>About</h3>
            <p>{{.Bio}}</p>
          </div>
        {{end}}{{if or .School .Instructor}}
          <div class="bio-section">
            <h3>Training Details</h3>
            {{if .School}}<p><strong>School:</strong> {{.School}}</p>{{end}}
            {{if .Instructor}}<p><strong>Instructor:</strong> {{.Instructor}}</p>{{end}}
            {{if .Weight}}<p><strong>Weight:</strong> {{.Weight}} ({{.WeightClass}})</p>{{end}}
          </div>
        {{end}}
      </div>
{{end}}

{{define "community"}}
      <div class="community-grid">
        {{range .}}{{template "profileCard" .}}{{end}}
      </div>
{{end}}

{{define "table"}}<table class="table">{{if .Headers}}<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>{{end}}<tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody></table>{{end}}

{{define "schoolLeaderboard"}}
      <div class="profile-card">
        <h2>{{.School}} Leaderboard</h2>
        <p class="stat-label">School Rankings by Division and Points</p>
      </div>
      <table class="table">
        <thead>
          <tr>
            <th>School Rank</th>
            <th>Global Rank</th>
            <th>Name</th>
            <th>Belt</th>
            <th>Division</th>
            <th>Points</th>
            <th>Wins</th>
            <th>Submissions</th>
          </tr>
        </thead>
        <tbody>
        {{range .Rows}}
        <tr>
          <td><strong>#{{.SchoolRank}}</strong></td>
          <td>{{.GlobalRank}}</td>
          <td>
            <div style="display: flex; align-items: center; gap: 8px;">
              <div class="profile-avatar" style="width: 32px; height: 32px; font-size: 12px;">
                {{.Initials}}
              </div>
              {{.Name}}
            </div>
          </td>
          <td><span class="belt-badge {{.BeltClass}}" style="font-size: 10px; padding: 2px 8px;">{{.Belt}}</span></td>
          <td>{{.WeightClass}} • {{.Gender}} • {{.AgeDivision}}</td>
          <td><strong>{{.Points}}</strong></td>
          <td>{{.Wins}}</td>
          <td>{{.Submissions}}</td>
        </tr>
        {{end}}
      </tbody></table>
{{end}}

{{define "schoolRankings"}}
      <div class="profile-card">
        <h2>BJJ School Rankings</h2>
        <p class="stat-label">Schools ranked by total points and performance</p>
      </div>
      <table class="table">
        <thead>
          <tr>
            <th>School Rank</th>
            <th>School Name</th>
            <th>Total Points</th>
            <th>Active Members</th>
            <th>Best Individual Rank</th>
            <th>Performance Score</th>
          </tr>
        </thead>
        <tbody>
        {{range .}}
        <tr>
          <td><strong>#{{.SchoolRank}}</strong></td>
          <td><strong>{{.School}}</strong></td>
          <td>{{.TotalPoints}}</td>
          <td>{{.TotalMembers}}</td>
          <td>{{.TopRank}}</td>
          <td>{{.AveragePoints}} avg points</td>
        </tr>
        {{end}}
      </tbody></table>
{{end}}

{{define "schoolPosition"}}{{template "profileCard" .Profile}}{{if .Ranks}}
      <div class="profile-card">
        <h3>School Performance</h3>
        <div class="stats-grid">
        {{range .Ranks}}
          <div class="stat-item">
            <span class="stat-value">#{{.SchoolRank}}</span>
            <span class="stat-label">School Rank</span>
          </div>
          <div class="stat-item">
            <span class="stat-value">{{.TotalMembers}}</span>
            <span class="stat-label">School Members</span>
          </div>
        {{end}}
      </div></div>{{end}}{{if .Teammates}}
      <div class="profile-card">
        <h3>School Teammates Rankings</h3>
        <table class="table">
          <thead>
            <tr>
              <th>School Rank</th>
              <th>Teammate</th>
              <th>Belt</th>
              <th>Points</th>
            </tr>
          </thead>
          <tbody>
          {{range .Teammates}}
          <tr style="{{if .IsCurrent}}background-color: #fef3c7; font-weight: bold;{{end}}">
            <td>#{{.SchoolRank}}</td>
            <td>
              {{.Name}}
              {{if .IsCurrent}} (You){{end}}
            </td>
            <td><span class="belt-badge {{.BeltClass}}" style="font-size: 10px; padding: 2px 8px;">{{.Belt}}</span></td>
            <td>{{.Points}}</td>
          </tr>
          {{end}}
      </tbody></table></div>{{end}}{{end}}
`))
