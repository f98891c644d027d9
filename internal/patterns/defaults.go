package patterns

func Default() Config {
	return Config{
		ErrorPatterns: []string{
			`(?:Error|ERROR):\s*([^\n]+)`,
			`(?:Failed|FAILED):\s*([^\n]+)`,
			`(?:Exception|EXCEPTION):\s*([^\n]+)`,
			`(?:Warning|WARNING):\s*([^\n]+)`,
			`(?:Fatal|FATAL):\s*([^\n]+)`,
			`\b(?:TypeError|ValueError|AttributeError|KeyError|IndexError|NameError|ImportError|RuntimeError|SyntaxError):\s*([^\n]+)`,
			`HTTP\s+(?:4\d{2}|5\d{2})\s*[:-]?\s*([^\n]+)`,
			`(?:status|code)\s*[=:]\s*(?:4\d{2}|5\d{2})\s*[:-]?\s*([^\n]+)`,
		},
		VerificationSteps: []Entry{
			{".blade.php", "Visit the affected routes in browser and verify UI changes"},
			{".vue", "Run `npm run dev` and test Vue components in browser"},
			{".jsx", "Run `npm start` and verify React component behavior"},
			{".tsx", "Run `npm start` and verify TypeScript React components"},
			{".html", "Open HTML file in browser and verify rendering"},
			{".css", "Check visual styling in browser across different screen sizes"},
			{".scss", "Compile SCSS and verify styles: `npm run build:css`"},
			{".php", "Run `php artisan test` or `phpunit` for PHP tests"},
			{".py", "Run `pytest` or `python -m unittest` for Python tests"},
			{".js", "Run `npm test` for JavaScript tests"},
			{".ts", "Run `npm test` and `npm run typecheck` for TypeScript"},
			{".go", "Run `go test ./...` for Go tests"},
			{".rs", "Run `cargo test` for Rust tests"},
			{".java", "Run `mvn test` or `gradle test` for Java tests"},
			{".rb", "Run `rspec` or `rails test` for Ruby tests"},
			{"migration", "Run migrations and verify database state"},
			{".sql", "Review and test SQL queries in database client"},
			{"schema", "Verify database schema changes are applied correctly"},
			{".env", "Verify environment variables are set correctly"},
			{".json", "Validate JSON syntax"},
			{".yaml", "Validate YAML syntax"},
			{".yml", "Validate YAML configuration files"},
			{"dockerfile", "Build and test Docker image: `docker build .`"},
			{".gitignore", "Verify git is ignoring the correct files: `git status --ignored`"},
			{".md", "Review documentation changes for accuracy and clarity"},
			{"readme", "Ensure README instructions are up-to-date and accurate"},
		},
		FrameworkPatterns: []Framework{
			{Name: "laravel", Paths: []Entry{
				{"app/Http/Controllers", "Test controller endpoints with Postman or browser"},
				{"app/Models", "Run model tests: `sail test --filter ModelTest`"},
				{"routes/", "Check routes: `sail artisan route:list`"},
				{"database/migrations", "Run `sail artisan migrate:status` and verify migration"},
				{"resources/views", "Clear view cache: `sail artisan view:clear` and test in browser"},
				{"tests/", "Run specific test file: `sail test path/to/test`"},
			}},
			{Name: "django", Paths: []Entry{
				{"views.py", "Test view endpoints with browser or API client"},
				{"models.py", "Run model tests: `python manage.py test`"},
				{"urls.py", "Check URL patterns are correct"},
				{"migrations/", "Run `python manage.py migrate` and verify"},
				{"templates/", "Clear template cache and test in browser"},
				{"tests.py", "Run specific test: `python manage.py test app.tests`"},
			}},
			{Name: "react", Paths: []Entry{
				{"components/", "Run component tests: `npm test`"},
				{"hooks/", "Test custom hooks behavior"},
				{"contexts/", "Verify context provider behavior"},
				{"pages/", "Test page routing and rendering"},
				{"__tests__/", "Run test suite: `npm test`"},
			}},
			{Name: "vue", Paths: []Entry{
				{"components/", "Run component tests: `npm run test:unit`"},
				{"composables/", "Test composable functions"},
				{"stores/", "Verify store state management"},
				{"views/", "Test view components in browser"},
				{"router/", "Verify routing configuration"},
			}},
		},
		DebugPatterns: []DebugPattern{
			{`\+.*(?:console\.log|console\.error|console\.debug)`, "Added JavaScript debugging"},
			{`\+.*(?:print\(|pprint\(|debug\(|breakpoint\()`, "Added Python debugging"},
			{`\+.*(?:dd\(|dump\(|var_dump\(|print_r\()`, "Added PHP debugging"},
			{`\+.*(?:puts|p\s+|pp\s+|binding\.pry)`, "Added Ruby debugging"},
			{`\+.*(?:fmt\.Print|log\.Print|debug\.Print)`, "Added Go debugging"},
			{`\+.*(?:System\.out\.print|logger\.debug|printStackTrace)`, "Added Java debugging"},
			{`\+.*(?:NSLog|print\(|debugPrint)`, "Added Swift debugging"},
			{`\+.*(?:println!|dbg!|eprintln!)`, "Added Rust debugging"},
		},
		InvestigationPatterns: []Entry{
			{"conditionals", `[-+].*\s+if\s*\(`},
			{"error_handling", `[-+].*(?:try|catch|except|rescue|panic|recover)`},
			{"function_changes", `[-+].*(?:function|def|func|method|proc)\s+\w+`},
			{"todo_comments", `[-+].*(?:TODO|FIXME|HACK|XXX|BUG|NOTE):`},
			{"assertions", `[-+].*(?:assert|expect|should|test|it\()`},
		},
	}
}
